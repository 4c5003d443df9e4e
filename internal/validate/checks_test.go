package validate

import (
	"fmt"
	"strings"
	"testing"

	"example.com/mkvgate/internal/diag"
	"example.com/mkvgate/internal/ebml"
	"example.com/mkvgate/internal/samples"
	"example.com/mkvgate/internal/schema"
)

func record(s *Session, code int) (diag.Diagnostic, bool) {
	for _, d := range s.Sink.Records() {
		if d.Code == code {
			return d, true
		}
	}
	return diag.Diagnostic{}, false
}

func TestSeekPointWrongPosition(t *testing.T) {
	seg := samples.NewSegment()
	seg.Add(samples.SeekHead(samples.SeekEntry{ID: schema.IDInfo, Pos: 7}))
	infoPos := seg.Add(samples.Info())
	data := samples.File(samples.Head("matroska", 2, 2), seg.Bytes())

	s, _, err := runBytes(t, data, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	d, ok := record(s, 0x063)
	if !ok {
		t.Fatalf("0x063 missing: %s", ids(s))
	}
	declared := s.Segment.DataOffset + 7
	real := s.Segment.DataOffset + infoPos
	sp := s.SeekHead.FindFirst(schema.IDSeek)
	want := fmt.Sprintf("The SeekPoint at %d references a SegmentInfo at wrong position %d (real %d)", sp.Offset, declared, real)
	if d.Message != want {
		t.Fatalf("message = %q, want %q", d.Message, want)
	}
}

func TestSeekHeadTargets(t *testing.T) {
	seg := samples.NewSegment()
	seg.Add(samples.SeekHead(
		samples.SeekEntry{ID: schema.IDTracks, Pos: 0},
		samples.SeekEntry{ID: schema.IDSeekHead, Pos: 0},
		samples.SeekEntry{ID: schema.IDCluster, Pos: 3},
		samples.SeekEntry{ID: 0x4DBB, Pos: 5},
	))
	seg.Add(samples.Info())
	seg.Add(samples.Tracks(samples.AudioTrack(2, "A_VORBIS", true)))
	seg.Add(samples.Cluster(0, samples.Key(2, 0)))
	data := samples.File(samples.Head("matroska", 2, 2), seg.Bytes())

	s, _, err := runBytes(t, data, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, code := range []int{0x065, 0x06E, 0x071, 0x860, 0x861} {
		if !s.Sink.Has(code) {
			t.Fatalf("code %03X missing: %s", code, ids(s))
		}
	}
	d, _ := record(s, 0x861)
	if d.Message != "The SegmentInfo is not referenced in the main SeekHead" {
		t.Fatalf("0x861 = %q", d.Message)
	}
}

func TestSecondarySeekHead(t *testing.T) {
	seg := samples.NewSegment()
	seg.Add(samples.SeekHead(samples.SeekEntry{ID: schema.IDInfo, Pos: 0}))
	seg.Add(samples.Info())
	seg.Add(samples.SeekHead(samples.SeekEntry{ID: schema.IDSeekHead, Pos: 1}))
	data := samples.File(samples.Head("matroska", 2, 2), seg.Bytes())

	s, _, err := runBytes(t, data, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// the primary SeekHead sits at 0, so the Info entry is wrong too
	for _, code := range []int{0x103, 0x063, 0x070, 0x861} {
		if !s.Sink.Has(code) {
			t.Fatalf("code %03X missing: %s", code, ids(s))
		}
	}
	if s.SeekHead2 == nil {
		t.Fatalf("secondary SeekHead not kept")
	}
}

func TestMissingMandatoryElement(t *testing.T) {
	info := ebml.Master(schema.IDInfo,
		ebml.Uint(schema.IDTimecodeScale, 1_000_000),
		ebml.String(schema.IDWritingApp, "w"),
	)
	data := samples.File(samples.Head("matroska", 2, 2), ebml.Master(schema.IDSegment, info))
	s, _, err := runBytes(t, data, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	d, ok := record(s, 0x200)
	if !ok {
		t.Fatalf("0x200 missing: %s", ids(s))
	}
	want := fmt.Sprintf("Missing element MuxingApp in Info at %d", s.Info.Offset)
	if d.Message != want {
		t.Fatalf("message = %q, want %q", d.Message, want)
	}
	if _, ok := record(s, 0x012); ok {
		t.Fatalf("unexpected unknown element")
	}
}

func TestDefaultedMandatoryIsNotMissing(t *testing.T) {
	// TimecodeScale has a default value
	info := ebml.Master(schema.IDInfo,
		ebml.String(schema.IDMuxingApp, "m"),
		ebml.String(schema.IDWritingApp, "w"),
	)
	data := samples.File(samples.Head("matroska", 2, 2), ebml.Master(schema.IDSegment, info))
	s, _, _ := runBytes(t, data, Options{})
	if s.Sink.Has(0x200) {
		t.Fatalf("diagnostics = %s", ids(s))
	}
}

func TestUniqueAndUnknownChildren(t *testing.T) {
	info := ebml.Master(schema.IDInfo,
		ebml.Uint(schema.IDTimecodeScale, 1_000_000),
		ebml.Uint(schema.IDTimecodeScale, 1_000_000),
		ebml.String(schema.IDMuxingApp, "m"),
		ebml.String(schema.IDWritingApp, "w"),
		ebml.Binary(0x4DBB, []byte{1}),
		ebml.Void(5000),
	)
	data := samples.File(samples.Head("matroska", 2, 2), ebml.Master(schema.IDSegment, info))
	s, _, _ := runBytes(t, data, Options{})
	for _, code := range []int{0x202, 0x012, 0x0D0} {
		if !s.Sink.Has(code) {
			t.Fatalf("code %03X missing: %s", code, ids(s))
		}
	}
	if s.VoidBytes != 5000 {
		t.Fatalf("VoidBytes = %d", s.VoidBytes)
	}
}

func lacedFile(trackLacing bool) []byte {
	seg := samples.NewSegment()
	seg.Add(samples.Info())
	seg.Add(samples.Tracks(samples.AudioTrack(2, "A_VORBIS", trackLacing)))
	seg.Add(samples.Cluster(0, ebml.SimpleBlock(2, 0, 0x86, []byte{1, 2, 3}, []byte{4, 5})))
	return samples.File(samples.Head("matroska", 2, 2), seg.Bytes())
}

func TestLacingMismatch(t *testing.T) {
	s, _, _ := runBytes(t, lacedFile(false), Options{})
	if !s.Sink.Has(0x0B0) {
		t.Fatalf("0x0B0 missing: %s", ids(s))
	}
	s, _, _ = runBytes(t, lacedFile(true), Options{})
	if s.Sink.Has(0x0B0) {
		t.Fatalf("unexpected 0x0B0: %s", ids(s))
	}
	tr, _ := s.Registry.Lookup(2)
	if tr.DataLength != 5 {
		t.Fatalf("DataLength = %d", tr.DataLength)
	}
}

func TestBlockChecks(t *testing.T) {
	group := func(track uint64, ref bool) []byte {
		children := [][]byte{ebml.Binary(schema.IDBlock, ebml.BlockPayload(track, 0, 0, []byte{9}))}
		if ref {
			children = append(children, ebml.Int(schema.IDReferenceBlock, -40))
		}
		return ebml.Master(schema.IDBlockGroup, children...)
	}
	seg := samples.NewSegment()
	seg.Add(samples.Info())
	seg.Add(samples.Tracks(
		samples.VideoTrack(1, "V_MPEG4/ISO/AVC", samples.Pixels(640, 480)),
		samples.AudioTrack(2, "A_VORBIS", true),
	))
	seg.Add(samples.Cluster(0,
		samples.Delta(1, 0),
		samples.Delta(1, 10),
		group(2, true),
		group(2, false),
		samples.Key(9, 0),
		ebml.Binary(schema.IDSimpleBlock, []byte{0x81}),
	))
	data := samples.File(samples.Head("matroska", 2, 2), seg.Bytes())

	s, _, err := runBytes(t, data, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	counts := map[int]int{}
	for _, d := range s.Sink.Records() {
		counts[d.Code]++
	}
	// one warning for the video track, one error for the referencing group
	if counts[0x0C0] != 1 || counts[0x0B1] != 1 || counts[0x0B2] != 1 || counts[0x0B3] != 1 {
		t.Fatalf("counts = %v (%s)", counts, ids(s))
	}
	d, _ := record(s, 0x0B1)
	if d.Message[:5] != "Block" {
		t.Fatalf("0x0B1 = %q", d.Message)
	}
}

func TestCueOrdering(t *testing.T) {
	clusters := [][]byte{
		samples.Cluster(50, samples.Key(1, 0), samples.Key(2, 0), samples.Key(1, 50)),
	}
	s, _, _ := runBytes(t, samples.Build(clusters, []uint64{100, 50}), Options{})
	d, ok := record(s, 0x311)
	if !ok {
		t.Fatalf("0x311 missing: %s", ids(s))
	}
	if d.Message != "The Cues entry for timecode 50 ms is listed after entry 100 ms" {
		t.Fatalf("message = %q", d.Message)
	}
	if s.Sink.Has(0x312) {
		t.Fatalf("cues should resolve: %s", ids(s))
	}

	s, _, _ = runBytes(t, samples.Build(clusters, []uint64{50, 100}), Options{})
	if s.Sink.Has(0x311) || s.Sink.Has(0x312) {
		t.Fatalf("ordered cues flagged: %s", ids(s))
	}
}

func TestCuesWithoutInfo(t *testing.T) {
	data := samples.File(samples.Head("matroska", 2, 2), ebml.Master(schema.IDSegment, samples.Cues(samples.CuePoint(0, 1, 0))))
	s, _, _ := runBytes(t, data, Options{})
	if !s.Sink.Has(0x310) || !s.Sink.Has(0x040) {
		t.Fatalf("diagnostics = %s", ids(s))
	}
}

func TestVideoGeometry(t *testing.T) {
	video := func(children ...[]byte) []byte {
		return samples.VideoTrack(1, "V_VP8", children...)
	}
	dims := func(id uint32, v uint64) []byte { return ebml.Uint(id, v) }
	tests := []struct {
		name    string
		docType string
		entry   []byte
		code    int
		sev     diag.Severity
	}{
		{name: "defaults", docType: "matroska", entry: video(samples.Pixels(1920, 1080))},
		{name: "scaled display", docType: "matroska", entry: video(samples.Pixels(1920, 1080), dims(schema.IDDisplayWidth, 1280), dims(schema.IDDisplayHeight, 720))},
		{name: "ratio as size", docType: "matroska", entry: video(samples.Pixels(1920, 1080), dims(schema.IDDisplayWidth, 16), dims(schema.IDDisplayHeight, 9)), code: 0xE3, sev: diag.ERROR},
		{name: "odd ratio", docType: "matroska", entry: video(samples.Pixels(1920, 1080), dims(schema.IDDisplayWidth, 4), dims(schema.IDDisplayHeight, 3)), code: 0xE3, sev: diag.WARN},
		{name: "webm is stricter", docType: "webm", entry: video(samples.Pixels(1920, 1080), dims(schema.IDDisplayWidth, 4), dims(schema.IDDisplayHeight, 3)), code: 0xE3, sev: diag.ERROR},
		{name: "no pixel width", docType: "matroska", entry: video(ebml.Uint(schema.IDPixelHeight, 10)), code: 0xE1, sev: diag.ERROR},
		{name: "null display", docType: "matroska", entry: video(samples.Pixels(640, 480), dims(schema.IDDisplayHeight, 0)), code: 0xE7, sev: diag.ERROR},
		{name: "dar with crop", docType: "matroska", entry: video(samples.Pixels(640, 480), dims(schema.IDDisplayUnit, 3), dims(schema.IDPixelCropTop, 2)), code: 0xE4, sev: diag.ERROR},
		{name: "vertical crop", docType: "matroska", entry: video(samples.Pixels(640, 480), dims(schema.IDPixelCropTop, 240), dims(schema.IDPixelCropBottom, 240)), code: 0xE5, sev: diag.ERROR},
		{name: "horizontal crop", docType: "matroska", entry: video(samples.Pixels(640, 480), dims(schema.IDPixelCropLeft, 640)), code: 0xE6, sev: diag.ERROR},
		{name: "no video element", docType: "matroska", entry: ebml.Master(schema.IDTrackEntry,
			ebml.Uint(schema.IDTrackNumber, 1),
			ebml.Uint(schema.IDTrackType, schema.TrackTypeVideo),
			ebml.String(schema.IDCodecID, "V_VP8"),
		), code: 0xE0, sev: diag.WARN},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seg := samples.NewSegment()
			seg.Add(samples.Info())
			seg.Add(samples.Tracks(tc.entry))
			s, _, err := runBytes(t, samples.File(samples.Head(tc.docType, 2, 2), seg.Bytes()), Options{})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			var got []diag.Diagnostic
			for _, d := range s.Sink.Records() {
				if d.Code >= 0xE0 && d.Code <= 0xE7 {
					got = append(got, d)
				}
			}
			if tc.code == 0 {
				if len(got) != 0 {
					t.Fatalf("unexpected video diagnostics: %+v", got)
				}
				return
			}
			if len(got) == 0 || got[0].Code != tc.code || got[0].Severity != tc.sev {
				t.Fatalf("got %+v, want %03X %s", got, tc.code, tc.sev)
			}
		})
	}
}

func TestProfileResolution(t *testing.T) {
	tests := []struct {
		docType string
		read    uint64
		divx    bool
		want    schema.Profile
	}{
		{"matroska", 1, false, schema.ProfileMatroskaV1},
		{"matroska", 2, false, schema.ProfileMatroskaV2},
		{"matroska", 1, true, schema.ProfileDivXV1},
		{"matroska", 2, true, schema.ProfileDivXV2},
		{"webm", 1, false, schema.ProfileWebMV1},
		{"webm", 2, true, schema.ProfileWebMV2},
		{"webm", 3, false, schema.ProfileUnknown},
		{"matroska", 4, false, schema.ProfileUnknown},
	}
	for _, tc := range tests {
		if got := profileFor(tc.docType, tc.read, tc.divx); got != tc.want {
			t.Errorf("profileFor(%s, %d, %v) = %v, want %v", tc.docType, tc.read, tc.divx, got, tc.want)
		}
	}
}

func TestHeaderChecks(t *testing.T) {
	head := ebml.Master(schema.IDEBML,
		ebml.Uint(schema.IDEBMLReadVersion, 2),
		ebml.Uint(schema.IDEBMLMaxIDLength, 5),
		ebml.Uint(schema.IDEBMLMaxSizeLength, 9),
		ebml.String(schema.IDDocType, "matroska"),
		ebml.Uint(schema.IDDocTypeVersion, 4),
		ebml.Uint(schema.IDDocTypeReadVersion, 3),
	)
	s, _, err := runBytes(t, samples.File(head, ebml.Master(schema.IDSegment, samples.Info())), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, code := range []int{0x005, 0x006, 0x007, 0x009, 0x00A, 0x00B} {
		if !s.Sink.Has(code) {
			t.Fatalf("code %03X missing: %s", code, ids(s))
		}
	}
	if s.Profile != schema.ProfileUnknown {
		t.Fatalf("profile = %v", s.Profile)
	}
}

func TestDocTypeVersions(t *testing.T) {
	tests := []struct {
		version, read uint64
		flagged       bool
	}{
		{version: 4, read: 2, flagged: true},
		{version: 2, read: 2, flagged: false},
		{version: 1, read: 2, flagged: false},
	}
	for _, tc := range tests {
		head := samples.Head("matroska", tc.version, tc.read)
		s, _, err := runBytes(t, samples.File(head, ebml.Master(schema.IDSegment, samples.Info())), Options{})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if got := s.Sink.Has(0x009); got != tc.flagged {
			t.Fatalf("version %d read %d: 0x009 = %v (%s)", tc.version, tc.read, got, ids(s))
		}
		if tc.flagged {
			want := fmt.Sprintf("The read DocType version %d is higher than the Doctype version %d", tc.read, tc.version)
			for _, d := range s.Sink.Records() {
				if d.Code == 0x009 && d.Message != want {
					t.Fatalf("message = %q, want %q", d.Message, want)
				}
			}
		}
	}
}

func TestProfileViolation(t *testing.T) {
	seg := samples.NewSegment()
	seg.Add(samples.Info())
	seg.Add(samples.Tracks(samples.AudioTrack(2, "A_VORBIS", true)))
	seg.Add(samples.Cluster(0, ebml.Uint(schema.IDClusterPosition, 0), samples.Key(2, 0)))
	seg.Add(ebml.Master(schema.IDChapters))
	s, _, _ := runBytes(t, samples.File(samples.Head("webm", 2, 2), seg.Bytes()), Options{})
	n := 0
	for _, d := range s.Sink.Records() {
		if d.Code == 0x201 {
			n++
		}
	}
	if n != 2 {
		t.Fatalf("0x201 count = %d (%s)", n, ids(s))
	}
	// Position is wrong as well
	if !s.Sink.Has(0x0A2) {
		t.Fatalf("0x0A2 missing: %s", ids(s))
	}
}

func TestSingletonsAndTracks(t *testing.T) {
	entry := func(num uint64, codec string, link bool) []byte {
		children := [][]byte{
			ebml.Uint(schema.IDTrackNumber, num),
			ebml.Uint(schema.IDTrackType, schema.TrackTypeAudio),
			ebml.String(schema.IDCodecID, codec),
		}
		if link {
			children = append(children, ebml.Uint(schema.IDAttachmentLink, 77))
		}
		return ebml.Master(schema.IDTrackEntry, children...)
	}
	seg := samples.NewSegment()
	seg.Add(samples.Info())
	seg.Add(samples.Info())
	seg.Add(samples.Tracks(entry(1, "a_vorbis", false), entry(1, "A_OPUS", false), entry(2, "A_VORBIS", true)))
	data := samples.File(samples.Head("webm", 2, 2), seg.Bytes())

	s, _, _ := runBytes(t, data, Options{})
	for _, code := range []int{0x110, 0x308, 0x307, 0x303, 0x305, 0x0B8} {
		if !s.Sink.Has(code) {
			t.Fatalf("code %03X missing: %s", code, ids(s))
		}
	}
	if s.Registry.Len() != 2 {
		t.Fatalf("registry = %d tracks", s.Registry.Len())
	}
}

func TestAttachmentLinks(t *testing.T) {
	file := func(uid uint64) []byte {
		return ebml.Master(0x61A7,
			ebml.String(0x466E, "cover.jpg"),
			ebml.String(0x4660, "image/jpeg"),
			ebml.Binary(0x465C, []byte{0xFF, 0xD8}),
			ebml.Uint(schema.IDFileUID, uid),
		)
	}
	track := ebml.Master(schema.IDTrackEntry,
		ebml.Uint(schema.IDTrackNumber, 1),
		ebml.Uint(schema.IDTrackType, schema.TrackTypeAudio),
		ebml.String(schema.IDCodecID, "A_AAC"),
		ebml.Uint(schema.IDAttachmentLink, 5),
		ebml.Uint(schema.IDAttachmentLink, 6),
	)
	seg := samples.NewSegment()
	seg.Add(samples.Info())
	seg.Add(samples.Tracks(track))
	seg.Add(ebml.Master(schema.IDAttachments, file(5)))
	s, _, _ := runBytes(t, samples.File(samples.Head("matroska", 2, 2), seg.Bytes()), Options{})
	d, ok := record(s, 0x306)
	if !ok || d.Message != "Track #1 attachment link UID 0x6 not found in attachments" {
		t.Fatalf("0x306 = %q (%s)", d.Message, ids(s))
	}
	if s.Sink.Has(0x305) {
		t.Fatalf("unexpected 0x305")
	}
}

func TestPositionAndPrevSize(t *testing.T) {
	seg := samples.NewSegment()
	seg.Add(samples.Info())
	seg.Add(samples.Tracks(samples.AudioTrack(2, "A_VORBIS", true)))
	first := seg.Pos()
	c1 := samples.Cluster(0, ebml.Uint(schema.IDClusterPrevSize, 3), ebml.Uint(schema.IDClusterPosition, uint64(first)), samples.Key(2, 0))
	seg.Add(c1)
	seg.Add(samples.Cluster(10, ebml.Uint(schema.IDClusterPrevSize, uint64(len(c1))+1), samples.Key(2, 0)))
	s, _, _ := runBytes(t, samples.File(samples.Head("matroska", 2, 2), seg.Bytes()), Options{})
	if !s.Sink.Has(0x0A0) || !s.Sink.Has(0x0A1) || s.Sink.Has(0x0A2) {
		t.Fatalf("diagnostics = %s", ids(s))
	}
}

func TestMissingSecondarySeekHead(t *testing.T) {
	seg := samples.NewSegment()
	seg.Add(samples.SeekHead(
		samples.SeekEntry{ID: schema.IDInfo, Pos: 0},
		samples.SeekEntry{ID: schema.IDSeekHead, Pos: 999},
	))
	seg.Add(samples.Info())
	data := samples.File(samples.Head("matroska", 2, 2), seg.Bytes())

	s, _, err := runBytes(t, data, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	d, ok := record(s, 0x06F)
	if !ok {
		t.Fatalf("0x06F missing: %s", ids(s))
	}
	sp := s.SeekHead.FindAll(schema.IDSeek)[1]
	want := fmt.Sprintf("The SeekPoint at %d references an unknown secondary SeekHead at %d", sp.Offset, s.Segment.DataOffset+999)
	if d.Message != want {
		t.Fatalf("message = %q, want %q", d.Message, want)
	}
}

func TestExtraSeekHead(t *testing.T) {
	seg := samples.NewSegment()
	seg.Add(samples.SeekHead(samples.SeekEntry{ID: schema.IDInfo, Pos: 0}))
	seg.Add(samples.Info())
	seg.Add(samples.SeekHead(samples.SeekEntry{ID: schema.IDInfo, Pos: 0}))
	third := seg.Add(samples.SeekHead(samples.SeekEntry{ID: schema.IDInfo, Pos: 0}))
	data := samples.File(samples.Head("matroska", 2, 2), seg.Bytes())

	s, _, err := runBytes(t, data, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	n := 0
	for _, d := range s.Sink.Records() {
		if d.Code == 0x101 {
			n++
		}
	}
	if n != 1 || !s.Sink.Has(0x103) {
		t.Fatalf("0x101 records = %d: %s", n, ids(s))
	}
	d, _ := record(s, 0x101)
	if want := fmt.Sprintf("Extra SeekHead found at %d", s.Segment.DataOffset+third); !strings.HasPrefix(d.Message, want) {
		t.Fatalf("message = %q, want prefix %q", d.Message, want)
	}
}

func TestSegmentSizeMismatch(t *testing.T) {
	children := append(samples.Info(), samples.Tracks(samples.AudioTrack(2, "A_VORBIS", true))...)
	segment := append(ebml.EncodeID(schema.IDSegment), ebml.EncodeSize(int64(len(children)+100))...)
	segment = append(segment, children...)
	data := samples.File(samples.Head("matroska", 2, 2), segment)

	s, _, err := runBytes(t, data, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	d, ok := record(s, 0x042)
	if !ok {
		t.Fatalf("0x042 missing: %s", ids(s))
	}
	want := fmt.Sprintf("The segment's size %d doesn't match the position where it ends %d", s.Segment.End(), int64(len(data)))
	if d.Message != want {
		t.Fatalf("message = %q, want %q", d.Message, want)
	}

	s, _, _ = runBytes(t, samples.Valid(), Options{})
	if s.Sink.Has(0x042) {
		t.Fatalf("0x042 on a well-sized segment")
	}
}
