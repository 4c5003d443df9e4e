package schema

// Element IDs referenced directly by the decoder and the validation engine.
// Everything else is only known through the schema document.
const (
	IDEBML               uint32 = 0x1A45DFA3
	IDEBMLVersion        uint32 = 0x4286
	IDEBMLReadVersion    uint32 = 0x42F7
	IDEBMLMaxIDLength    uint32 = 0x42F2
	IDEBMLMaxSizeLength  uint32 = 0x42F3
	IDDocType            uint32 = 0x4282
	IDDocTypeVersion     uint32 = 0x4287
	IDDocTypeReadVersion uint32 = 0x4285

	IDVoid  uint32 = 0xEC
	IDCRC32 uint32 = 0xBF

	IDSegment     uint32 = 0x18538067
	IDSeekHead    uint32 = 0x114D9B74
	IDSeek        uint32 = 0x4DBB
	IDSeekID      uint32 = 0x53AB
	IDSeekPos     uint32 = 0x53AC
	IDInfo        uint32 = 0x1549A966
	IDTracks      uint32 = 0x1654AE6B
	IDCues        uint32 = 0x1C53BB6B
	IDChapters    uint32 = 0x1043A770
	IDTags        uint32 = 0x1254C367
	IDAttachments uint32 = 0x1941A469
	IDCluster     uint32 = 0x1F43B675

	IDTimecodeScale uint32 = 0x2AD7B1
	IDDuration      uint32 = 0x4489
	IDMuxingApp     uint32 = 0x4D80
	IDWritingApp    uint32 = 0x5741

	IDClusterTimecode uint32 = 0xE7
	IDClusterPosition uint32 = 0xA7
	IDClusterPrevSize uint32 = 0xAB
	IDSimpleBlock     uint32 = 0xA3
	IDBlockGroup      uint32 = 0xA0
	IDBlock           uint32 = 0xA1
	IDReferenceBlock  uint32 = 0xFB

	IDTrackEntry     uint32 = 0xAE
	IDTrackNumber    uint32 = 0xD7
	IDTrackType      uint32 = 0x83
	IDFlagLacing     uint32 = 0x9C
	IDCodecID        uint32 = 0x86
	IDAttachmentLink uint32 = 0x7446
	IDVideo          uint32 = 0xE0

	IDPixelWidth      uint32 = 0xB0
	IDPixelHeight     uint32 = 0xBA
	IDPixelCropBottom uint32 = 0x54AA
	IDPixelCropTop    uint32 = 0x54BB
	IDPixelCropLeft   uint32 = 0x54CC
	IDPixelCropRight  uint32 = 0x54DD
	IDDisplayWidth    uint32 = 0x54B0
	IDDisplayHeight   uint32 = 0x54BA
	IDDisplayUnit     uint32 = 0x54B2

	IDCuePoint          uint32 = 0xBB
	IDCueTime           uint32 = 0xB3
	IDCueTrackPositions uint32 = 0xB7
	IDCueTrack          uint32 = 0xF7

	IDAttachedFile uint32 = 0x61A7
	IDFileUID      uint32 = 0x46AE
)

// Track types carried by TrackType.
const (
	TrackTypeVideo = 1
	TrackTypeAudio = 2
)

// IsGlobal reports whether id may appear as a child of any master element.
func IsGlobal(id uint32) bool {
	return id == IDVoid || id == IDCRC32
}
