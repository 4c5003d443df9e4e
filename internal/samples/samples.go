// Package samples builds small deterministic Matroska files, either valid or
// carrying one known defect.
package samples

import (
	"bytes"
	"fmt"
	"math/bits"
	"os"
	"path/filepath"
	"sort"

	"example.com/mkvgate/internal/ebml"
	"example.com/mkvgate/internal/schema"
)

// IDs only needed to build samples.
const (
	idTrackUID           uint32 = 0x73C5
	idCueClusterPosition uint32 = 0xF1
	idAudio              uint32 = 0xE1
	idSamplingFrequency  uint32 = 0xB5
	idChannels           uint32 = 0x9F
	idDuration           uint32 = 0x4489
)

const (
	MuxingApp  = "mkvgate samples"
	WritingApp = "generate_samples"

	// ValidFileName is the name WriteFiles gives the valid sample.
	ValidFileName = "valid.mkv"
)

// Head encodes an EBML header.
func Head(docType string, version, readVersion uint64) []byte {
	return ebml.Master(schema.IDEBML,
		ebml.Uint(schema.IDEBMLVersion, 1),
		ebml.Uint(schema.IDEBMLReadVersion, 1),
		ebml.Uint(schema.IDEBMLMaxIDLength, 4),
		ebml.Uint(schema.IDEBMLMaxSizeLength, 8),
		ebml.String(schema.IDDocType, docType),
		ebml.Uint(schema.IDDocTypeVersion, version),
		ebml.Uint(schema.IDDocTypeReadVersion, readVersion),
	)
}

// Info encodes a SegmentInfo with the default TimecodeScale.
func Info(extra ...[]byte) []byte {
	children := [][]byte{
		ebml.Uint(schema.IDTimecodeScale, 1_000_000),
		ebml.String(schema.IDMuxingApp, MuxingApp),
		ebml.String(schema.IDWritingApp, WritingApp),
	}
	return ebml.Master(schema.IDInfo, append(children, extra...)...)
}

// Duration encodes a SegmentInfo Duration in ticks.
func Duration(ticks float64) []byte {
	return ebml.Float(idDuration, ticks)
}

// VideoTrack encodes a video TrackEntry. video holds the children of the
// Video element.
func VideoTrack(num uint64, codec string, video ...[]byte) []byte {
	return ebml.Master(schema.IDTrackEntry,
		ebml.Uint(schema.IDTrackNumber, num),
		ebml.Uint(idTrackUID, 1000+num),
		ebml.Uint(schema.IDTrackType, schema.TrackTypeVideo),
		ebml.String(schema.IDCodecID, codec),
		ebml.Master(schema.IDVideo, video...),
	)
}

// Pixels encodes PixelWidth and PixelHeight.
func Pixels(w, h uint64) []byte {
	return append(ebml.Uint(schema.IDPixelWidth, w), ebml.Uint(schema.IDPixelHeight, h)...)
}

// AudioTrack encodes an audio TrackEntry with the given FlagLacing.
func AudioTrack(num uint64, codec string, lacing bool) []byte {
	flag := uint64(0)
	if lacing {
		flag = 1
	}
	return ebml.Master(schema.IDTrackEntry,
		ebml.Uint(schema.IDTrackNumber, num),
		ebml.Uint(idTrackUID, 1000+num),
		ebml.Uint(schema.IDTrackType, schema.TrackTypeAudio),
		ebml.Uint(schema.IDFlagLacing, flag),
		ebml.String(schema.IDCodecID, codec),
		ebml.Master(idAudio,
			ebml.Float(idSamplingFrequency, 48000),
			ebml.Uint(idChannels, 2),
		),
	)
}

func Tracks(entries ...[]byte) []byte {
	return ebml.Master(schema.IDTracks, entries...)
}

// Cluster encodes a Cluster with a Timecode followed by blocks.
func Cluster(timecode uint64, blocks ...[]byte) []byte {
	return ebml.Master(schema.IDCluster, append([][]byte{ebml.Uint(schema.IDClusterTimecode, timecode)}, blocks...)...)
}

// Key and Delta encode single-frame SimpleBlocks.
func Key(track uint64, tc int16) []byte {
	return ebml.SimpleBlock(track, tc, 0x80, []byte{0x00, 0x01, 0x02, 0x03})
}

func Delta(track uint64, tc int16) []byte {
	return ebml.SimpleBlock(track, tc, 0x00, []byte{0x04, 0x05})
}

// CuePoint encodes one CuePoint for a track.
func CuePoint(time, track uint64, clusterPos int64) []byte {
	return ebml.Master(schema.IDCuePoint,
		ebml.Uint(schema.IDCueTime, time),
		ebml.Master(schema.IDCueTrackPositions,
			ebml.Uint(schema.IDCueTrack, track),
			ebml.Uint(idCueClusterPosition, uint64(clusterPos)),
		),
	)
}

func Cues(points ...[]byte) []byte {
	return ebml.Master(schema.IDCues, points...)
}

// SeekEntry is one SeekPoint; Pos is relative to the segment data.
type SeekEntry struct {
	ID  uint32
	Pos int64
}

// SeekHead encodes a SeekHead. Positions use a fixed width so the element
// size does not depend on them.
func SeekHead(entries ...SeekEntry) []byte {
	var seeks [][]byte
	for _, e := range entries {
		seeks = append(seeks, ebml.Master(schema.IDSeek,
			ebml.Binary(schema.IDSeekID, ebml.EncodeID(e.ID)),
			ebml.UintWidth(schema.IDSeekPos, uint64(e.Pos), 8),
		))
	}
	return ebml.Master(schema.IDSeekHead, seeks...)
}

// Segment collects level-1 elements and tracks their positions relative to
// the segment data start.
type Segment struct {
	parts   [][]byte
	pos     []int64
	size    int64
	indexed []uint32
}

// NewSegment starts a segment. When indexed IDs are given a SeekHead pointing
// at the first element of each is written first.
func NewSegment(indexed ...uint32) *Segment {
	s := &Segment{indexed: indexed}
	if len(indexed) > 0 {
		placeholder := make([]SeekEntry, len(indexed))
		for i, id := range indexed {
			placeholder[i] = SeekEntry{ID: id}
		}
		s.Add(SeekHead(placeholder...))
	}
	return s
}

// Add appends a level-1 element and returns its relative position.
func (s *Segment) Add(el []byte) int64 {
	p := s.size
	s.parts = append(s.parts, el)
	s.pos = append(s.pos, p)
	s.size += int64(len(el))
	return p
}

// Pos is the relative position of the next element.
func (s *Segment) Pos() int64 {
	return s.size
}

// Position returns the relative position of the first element with id.
func (s *Segment) Position(id uint32) (int64, bool) {
	for i, part := range s.parts {
		if leadingID(part) == id {
			return s.pos[i], true
		}
	}
	return 0, false
}

func (s *Segment) children() [][]byte {
	parts := append([][]byte(nil), s.parts...)
	if len(s.indexed) == 0 {
		return parts
	}
	var entries []SeekEntry
	for _, id := range s.indexed {
		for i := 1; i < len(s.parts); i++ {
			if leadingID(s.parts[i]) == id {
				entries = append(entries, SeekEntry{ID: id, Pos: s.pos[i]})
				break
			}
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Pos < entries[j].Pos })
	sh := SeekHead(entries...)
	if len(entries) < len(s.indexed) {
		// fill the room left by entries that were never added
		sh = append(sh, ebml.Void(len(s.parts[0])-len(sh))...)
	}
	parts[0] = sh
	return parts
}

// Bytes encodes the segment with a known size.
func (s *Segment) Bytes() []byte {
	return ebml.Master(schema.IDSegment, s.children()...)
}

// UnknownSizeBytes encodes the segment with the unknown size marker.
func (s *Segment) UnknownSizeBytes() []byte {
	return ebml.MasterUnknown(schema.IDSegment, s.children()...)
}

// File joins a header and a segment.
func File(head, segment []byte) []byte {
	out := make([]byte, 0, len(head)+len(segment))
	out = append(out, head...)
	return append(out, segment...)
}

func leadingID(el []byte) uint32 {
	if len(el) == 0 || el[0] == 0 {
		return 0
	}
	n := bits.LeadingZeros8(el[0]) + 1
	if n > 4 || n > len(el) {
		return 0
	}
	var id uint32
	for _, b := range el[:n] {
		id = id<<8 | uint32(b)
	}
	return id
}

// Valid builds a Matroska v2 file with one video and one audio track, two
// clusters and a cue per cluster. It yields no diagnostics.
func Valid() []byte {
	return Build(validClusters(), nil)
}

func validClusters() [][]byte {
	return [][]byte{
		Cluster(0, Key(1, 0), Key(2, 0), Delta(1, 40), Key(2, 40)),
		Cluster(1000, Key(1, 0), Key(2, 0), Delta(1, 40)),
	}
}

// Build assembles a Matroska v2 sample: SeekHead, Info, a video track 1 and
// an audio track 2, the clusters, then Cues on track 1. cueTimes defaults to
// 0 and 1000; cue i points at cluster i modulo the cluster count.
func Build(clusters [][]byte, cueTimes []uint64) []byte {
	seg := NewSegment(schema.IDInfo, schema.IDTracks, schema.IDCues)
	seg.Add(Info(Duration(1040)))
	seg.Add(Tracks(
		VideoTrack(1, "V_MPEG4/ISO/AVC", Pixels(1920, 1080)),
		AudioTrack(2, "A_VORBIS", true),
	))
	var positions []int64
	for _, cl := range clusters {
		positions = append(positions, seg.Add(cl))
	}
	if cueTimes == nil {
		cueTimes = []uint64{0, 1000}
	}
	var points [][]byte
	for i, t := range cueTimes {
		points = append(points, CuePoint(t, 1, positions[i%len(positions)]))
	}
	seg.Add(Cues(points...))
	return File(Head("matroska", 2, 2), seg.Bytes())
}

// Defect is a sample carrying one known problem.
type Defect struct {
	Name string
	// Code is the diagnostic the defect must produce.
	Code int
	Data []byte
}

// Defects returns the defective samples in a stable order.
func Defects() []Defect {
	return []Defect{
		{Name: "cluster-timecode", Code: 0xC2, Data: Build([][]byte{
			Cluster(1000, Key(1, 0), Key(2, 0)),
			Cluster(500, Key(1, 0), Key(2, 0)),
		}, []uint64{1000})},
		{Name: "cue-order", Code: 0x311, Data: Build(validClusters(), []uint64{1000, 0})},
		{Name: "cue-missing", Code: 0x312, Data: Build(validClusters(), []uint64{0, 1005})},
		{Name: "lacing", Code: 0xB0, Data: lacingDefect()},
		{Name: "unknown-level1", Code: 0x080, Data: unknownLevel1()},
	}
}

func lacingDefect() []byte {
	seg := NewSegment(schema.IDInfo, schema.IDTracks)
	seg.Add(Info())
	seg.Add(Tracks(AudioTrack(2, "A_VORBIS", false)))
	seg.Add(Cluster(0, ebml.SimpleBlock(2, 0, 0x82, []byte{1, 2, 3}, []byte{4, 5})))
	return File(Head("matroska", 2, 2), seg.Bytes())
}

func unknownLevel1() []byte {
	seg := NewSegment(schema.IDInfo, schema.IDTracks)
	seg.Add(Info())
	seg.Add(ebml.Binary(0x1F1F1F1F, []byte("not a matroska element")))
	seg.Add(Tracks(AudioTrack(2, "A_VORBIS", true)))
	seg.Add(Cluster(0, Key(2, 0)))
	return File(Head("matroska", 2, 2), seg.Bytes())
}

// WriteFiles materializes the valid sample and every defect under dir.
func WriteFiles(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	written := []string{filepath.Join(dir, ValidFileName)}
	if err := writeFileIfChanged(written[0], Valid()); err != nil {
		return nil, err
	}
	for _, d := range Defects() {
		path := filepath.Join(dir, fmt.Sprintf("defect-%s.mkv", d.Name))
		if err := writeFileIfChanged(path, d.Data); err != nil {
			return nil, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFileIfChanged(path string, data []byte) error {
	existing, err := os.ReadFile(path)
	if err == nil && bytes.Equal(existing, data) {
		return nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
