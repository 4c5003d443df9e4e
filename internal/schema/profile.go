package schema

import "strings"

// Profile is a container profile bit. A resolved run uses exactly one bit,
// or zero when the profile could not be determined.
type Profile uint8

const (
	ProfileUnknown    Profile = 0
	ProfileMatroskaV1 Profile = 1 << 0
	ProfileMatroskaV2 Profile = 1 << 1
	ProfileWebMV1     Profile = 1 << 2
	ProfileWebMV2     Profile = 1 << 3
	ProfileDivXV1     Profile = 1 << 4
	ProfileDivXV2     Profile = 1 << 5
)

var profileNames = []struct {
	p    Profile
	name string
}{
	{ProfileMatroskaV1, "matroska v1"},
	{ProfileMatroskaV2, "matroska v2"},
	{ProfileWebMV1, "webm v1"},
	{ProfileWebMV2, "webm v2"},
	{ProfileDivXV1, "divx v1"},
	{ProfileDivXV2, "divx v2"},
}

// profileGroups maps the names accepted in the schema document to masks.
var profileGroups = map[string]Profile{
	"matroska":    ProfileMatroskaV1 | ProfileMatroskaV2,
	"matroska-v1": ProfileMatroskaV1,
	"matroska-v2": ProfileMatroskaV2,
	"webm":        ProfileWebMV1 | ProfileWebMV2,
	"webm-v1":     ProfileWebMV1,
	"webm-v2":     ProfileWebMV2,
	"divx":        ProfileDivXV1 | ProfileDivXV2,
	"divx-v1":     ProfileDivXV1,
	"divx-v2":     ProfileDivXV2,
	"v1":          ProfileMatroskaV1 | ProfileWebMV1 | ProfileDivXV1,
}

func (p Profile) String() string {
	for _, pn := range profileNames {
		if pn.p == p {
			return pn.name
		}
	}
	return "unknown"
}

// IsWebM reports whether p is one of the WebM profiles.
func (p Profile) IsWebM() bool {
	return p&(ProfileWebMV1|ProfileWebMV2) != 0
}

// Profiles lists every concrete profile in a stable order.
func Profiles() []Profile {
	out := make([]Profile, 0, len(profileNames))
	for _, pn := range profileNames {
		out = append(out, pn.p)
	}
	return out
}

// ParseProfileMask turns a list of profile or group names into a mask.
func ParseProfileMask(names []string) (Profile, bool) {
	var mask Profile
	for _, n := range names {
		m, ok := profileGroups[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return 0, false
		}
		mask |= m
	}
	return mask, true
}
