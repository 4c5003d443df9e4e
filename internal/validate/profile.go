package validate

import (
	"example.com/mkvgate/internal/ebml"
	"example.com/mkvgate/internal/schema"
)

// Limits of the decoder, checked against the EBML header.
const (
	maxEBMLReadVersion = 1
	maxEBMLIDLength    = 4
	maxEBMLSizeLength  = 8
)

// resolveProfile derives the container profile from the EBML header. An
// unsupported DocType is fatal; any other unresolved combination leaves the
// profile unknown and the run continues.
func (s *Session) resolveProfile(head *ebml.Element) error {
	if v, _ := head.UintOr(schema.IDEBMLReadVersion, 1); v > maxEBMLReadVersion {
		s.Sink.Errorf(0x005, "The EBML read version is not supported: %d", v)
	}
	if v, _ := head.UintOr(schema.IDEBMLMaxIDLength, maxEBMLIDLength); v > maxEBMLIDLength {
		s.Sink.Errorf(0x006, "The EBML max ID length is not supported: %d", v)
	}
	if v, _ := head.UintOr(schema.IDEBMLMaxSizeLength, maxEBMLSizeLength); v > maxEBMLSizeLength {
		s.Sink.Errorf(0x007, "The EBML max size length is not supported: %d", v)
	}

	docType, ok := head.StringOf(schema.IDDocType)
	if !ok {
		docType = s.Schema.Lookup(schema.IDDocType).Default
	}
	if docType != "matroska" && docType != "webm" {
		return s.fatal(0x008, nil, "The EBML doctype is not supported: %s", docType)
	}

	docVer, _ := head.UintOr(schema.IDDocTypeVersion, 1)
	readVer, _ := head.UintOr(schema.IDDocTypeReadVersion, 1)
	if docVer > readVer {
		s.Sink.Errorf(0x009, "The read DocType version %d is higher than the Doctype version %d", readVer, docVer)
	}

	s.Profile = profileFor(docType, readVer, s.Opts.DivX)
	if s.Profile == schema.ProfileUnknown {
		if docType == "matroska" {
			s.Sink.Errorf(0x00A, "Unknown Matroska profile %d/%d", docVer, readVer)
		}
		s.Sink.Errorf(0x00B, "Matroska profile not supported")
	}
	return nil
}

func profileFor(docType string, readVer uint64, divx bool) schema.Profile {
	switch {
	case docType == "matroska" && readVer == 1 && divx:
		return schema.ProfileDivXV1
	case docType == "matroska" && readVer == 1:
		return schema.ProfileMatroskaV1
	case docType == "matroska" && readVer == 2 && divx:
		return schema.ProfileDivXV2
	case docType == "matroska" && readVer == 2:
		return schema.ProfileMatroskaV2
	case docType == "webm" && readVer == 1:
		return schema.ProfileWebMV1
	case docType == "webm" && readVer == 2:
		return schema.ProfileWebMV2
	}
	return schema.ProfileUnknown
}
