package schema

import (
	"strings"
	"testing"
)

func TestDefaultRegistryLoads(t *testing.T) {
	reg := Default()
	if reg.Len() < 100 {
		t.Fatalf("Len = %d, want a full schema", reg.Len())
	}
	for _, id := range []uint32{IDEBML, IDSegment, IDCluster, IDTracks, IDCues, IDSeekHead, IDInfo, IDVoid, IDCRC32} {
		if reg.Lookup(id) == nil {
			t.Fatalf("missing class %X", id)
		}
	}
	roots := reg.Roots()
	if len(roots) != 2 || roots[0].ID != IDEBML || roots[1].ID != IDSegment {
		t.Fatalf("roots = %v", roots)
	}
}

func TestSemanticLookup(t *testing.T) {
	reg := Default()
	cluster := reg.Lookup(IDCluster)
	sem, ok := cluster.Semantic(IDSimpleBlock)
	if !ok {
		t.Fatalf("SimpleBlock not a Cluster child")
	}
	if !sem.DisabledFor(ProfileMatroskaV1) || !sem.DisabledFor(ProfileDivXV1) {
		t.Fatalf("SimpleBlock should be disabled for v1 profiles, mask=%b", sem.Disabled)
	}
	if sem.DisabledFor(ProfileWebMV1) || sem.DisabledFor(ProfileMatroskaV2) {
		t.Fatalf("SimpleBlock should be allowed for webm and matroska v2")
	}
	if sem.DisabledFor(ProfileUnknown) {
		t.Fatalf("unknown profile must disable nothing")
	}
	tc, ok := cluster.Semantic(IDClusterTimecode)
	if !ok || !tc.Mandatory || !tc.Unique || tc.Class.HasDefault {
		t.Fatalf("Timecode semantic = %+v", tc)
	}
	if !cluster.Accepts(IDVoid) || !cluster.Accepts(IDCRC32) {
		t.Fatalf("globals must be accepted everywhere")
	}
	if cluster.Accepts(IDTrackNumber) {
		t.Fatalf("TrackNumber must not be a Cluster child")
	}
}

func TestTrickTrackDisabledOutsideDivX(t *testing.T) {
	entry := Default().Lookup(IDTrackEntry)
	sem, ok := entry.Semantic(0xC0)
	if !ok {
		t.Fatalf("TrickTrackUID missing")
	}
	for _, p := range []Profile{ProfileMatroskaV1, ProfileMatroskaV2, ProfileWebMV1, ProfileWebMV2} {
		if !sem.DisabledFor(p) {
			t.Fatalf("TrickTrackUID allowed for %s", p)
		}
	}
	if sem.DisabledFor(ProfileDivXV2) {
		t.Fatalf("TrickTrackUID disabled for divx v2")
	}
}

func TestDefaults(t *testing.T) {
	reg := Default()
	if got := reg.Lookup(IDTimecodeScale).DefaultUint(); got != 1000000 {
		t.Fatalf("TimecodeScale default = %d", got)
	}
	if got := reg.Lookup(IDFlagLacing).DefaultUint(); got != 1 {
		t.Fatalf("FlagLacing default = %d", got)
	}
	if got := reg.Lookup(IDDocType).Default; got != "matroska" {
		t.Fatalf("DocType default = %q", got)
	}
	if reg.Lookup(IDPixelWidth).HasDefault {
		t.Fatalf("PixelWidth must not have a default")
	}
	if got := reg.Name(0x123456); got != "[123456]" {
		t.Fatalf("Name(unknown) = %q", got)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "empty", doc: "classes: []", want: "no classes"},
		{name: "bad id", doc: "classes:\n  - {name: A, id: \"zz\", type: uint}", want: "invalid id"},
		{name: "bad type", doc: "classes:\n  - {name: A, id: \"80\", type: blob}", want: "invalid type"},
		{name: "unknown child", doc: "classes:\n  - {name: A, id: \"80\", type: master, children: [{name: B}]}", want: "unknown child"},
		{name: "bad profile", doc: "classes:\n  - {name: A, id: \"80\", type: master, children: [{name: A, disabled: [vhs]}]}", want: "invalid profile"},
		{name: "children on scalar", doc: "classes:\n  - {name: A, id: \"80\", type: uint, children: [{name: A}]}", want: "non-master"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load([]byte(tc.doc))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load err = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestProfileNames(t *testing.T) {
	if ProfileWebMV2.String() != "webm v2" || ProfileUnknown.String() != "unknown" {
		t.Fatalf("unexpected names %q %q", ProfileWebMV2, ProfileUnknown)
	}
	if !ProfileWebMV1.IsWebM() || ProfileDivXV1.IsWebM() {
		t.Fatalf("IsWebM mismatch")
	}
	if len(Profiles()) != 6 {
		t.Fatalf("Profiles = %v", Profiles())
	}
}
