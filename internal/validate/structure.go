package validate

import (
	"example.com/mkvgate/internal/ebml"
	"example.com/mkvgate/internal/schema"
)

// audit runs the three structural passes over a level-1 element: unknown
// children and void accounting, profile violations, then mandatory and
// unique children. Each pass walks the whole subtree in file order.
func (s *Session) audit(el *ebml.Element) {
	s.VoidBytes += s.checkUnknown(el)
	s.checkProfile(el)
	s.checkMandatory(el)
}

// checkUnknown reports children the schema does not know in their parent
// and returns the Void bytes found in the subtree.
func (s *Session) checkUnknown(el *ebml.Element) int64 {
	var void int64
	for _, c := range el.Children {
		switch {
		case !c.Known():
			s.Sink.Errorf(0x012, "Unknown element in %s %s at %d (size %d)", el.Name(), c.Name(), c.Offset, c.Size)
		case c.ID == schema.IDVoid:
			void += c.FullSize()
		case c.IsMaster():
			void += s.checkUnknown(c)
		}
	}
	return void
}

func (s *Session) checkProfile(el *ebml.Element) {
	for _, c := range el.Children {
		if !c.Known() {
			continue
		}
		if sem, ok := el.Class.Semantic(c.ID); ok && sem.DisabledFor(s.Profile) {
			s.Sink.Errorf(0x201, "Invalid %s for profile '%s' at %d in %s", c.Name(), s.Profile, c.Offset, el.Name())
		}
		if c.IsMaster() {
			s.checkProfile(c)
		}
	}
}

func (s *Session) checkMandatory(el *ebml.Element) {
	for _, sem := range el.Class.Children {
		if sem.DisabledFor(s.Profile) {
			continue
		}
		n := el.Count(sem.Class.ID)
		if sem.Mandatory && !sem.Class.HasDefault && n == 0 {
			s.Sink.Errorf(0x200, "Missing element %s in %s at %d", sem.Class.Name, el.Name(), el.Offset)
		}
		if sem.Unique && n > 1 {
			s.Sink.Errorf(0x202, "Unique element %s in %s at %d found more than once", sem.Class.Name, el.Name(), el.Offset)
		}
	}
	for _, c := range el.Children {
		if c.Known() && c.IsMaster() {
			s.checkMandatory(c)
		}
	}
}
