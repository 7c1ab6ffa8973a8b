package comment

import (
	"fmt"
	"strings"

	"github.com/tracklinkhq/tracklink/internal/models"
)

// TemplateBrowser resolves change entries to browsable URLs from a
// configured template containing a {rev} placeholder, e.g.
// "https://git.example.com/proj/commit/{rev}".
type TemplateBrowser struct {
	URLTemplate string
}

func (b *TemplateBrowser) ChangeSetLink(entry models.ChangeEntry) (string, error) {
	rev := models.RevisionOf(entry)
	if rev == "" {
		return "", fmt.Errorf("change has no revision identifier")
	}
	if !strings.Contains(b.URLTemplate, "{rev}") {
		return "", fmt.Errorf("browser URL template missing {rev}: %q", b.URLTemplate)
	}
	return strings.ReplaceAll(b.URLTemplate, "{rev}", rev), nil
}
