package playlist

import (
	"strings"

	"github.com/rizkirmdhn/catcast/pkg/models"
)

// IsValid reports whether a record carries a non-blank id, name and shortname
func IsValid(r models.ChannelRecord) bool {
	return r.ID.String() != "" &&
		strings.TrimSpace(r.Name) != "" &&
		strings.TrimSpace(r.Shortname) != ""
}
