package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/crackle/pkg/model"
)

// ModelTable renders the elements of a cracked tree as markdown, one row
// per element with its kind, bit position and value.
func ModelTable(tree *model.Tree) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s\n\n| Element | Kind | Offset | Value |\n|---|---|---|---|\n", tree.Name())
	tree.Walk(func(id model.ID) bool {
		pos := "?"
		if p, err := tree.Position(id); err == nil {
			pos = fmt.Sprintf("%d", p/8)
		}
		val := ""
		if !tree.Kind(id).IsContainer() {
			val = cell(tree.Value(id).String())
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n", tree.Path(id), tree.Kind(id), pos, val)
		return true
	})
	return sb.String()
}
