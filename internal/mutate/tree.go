package mutate

import (
	"strings"

	"quillborn-cli/internal/model"
)

// NewStructure returns a structure holding only a book root node.
func NewStructure(rootID, title string) *model.ManuscriptStructure {
	return &model.ManuscriptStructure{
		Root: rootID,
		Nodes: map[string]*model.ManuscriptNode{
			rootID: {
				ID:       rootID,
				Title:    title,
				Kind:     model.NodeKindBook,
				Children: []string{},
				Status:   model.StatusDraft,
			},
		},
		Order: []string{},
	}
}

// AddNode inserts node under parentID (the root when empty) and appends it to the creation order.
func AddNode(st *model.ManuscriptStructure, node model.ManuscriptNode, parentID string) error {
	if st == nil {
		return ErrInvalidParent
	}
	node.ID = strings.TrimSpace(node.ID)
	if node.ID == "" {
		return NotFoundError{Kind: "node", ID: ""}
	}
	if _, exists := st.Nodes[node.ID]; exists {
		return ErrDuplicateNode
	}
	if node.Kind == "" {
		node.Kind = model.NodeKindChapter
	}
	if !node.Kind.Valid() {
		return ErrInvalidKind
	}
	if node.Status == "" {
		node.Status = model.StatusDraft
	}
	if node.WordCount < 0 {
		node.WordCount = 0
	}
	node.Children = []string{}

	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		parentID = st.Root
	}
	parent, ok := st.FindNode(parentID)
	if !ok {
		return ParentError{ParentID: parentID}
	}

	if st.Nodes == nil {
		st.Nodes = map[string]*model.ManuscriptNode{}
	}
	st.Nodes[node.ID] = &node
	st.Order = append(st.Order, node.ID)
	parent.Children = append(parent.Children, node.ID)
	return nil
}

// RemoveNode removes id and all of its descendants. It returns every removed id (id first).
func RemoveNode(st *model.ManuscriptStructure, id string) ([]string, error) {
	id = strings.TrimSpace(id)
	if _, ok := st.FindNode(id); !ok {
		return nil, NotFoundError{Kind: "node", ID: id}
	}
	if id == st.Root {
		return nil, ErrRootNode
	}

	removed := collectSubtreeIDs(st, id)
	gone := make(map[string]bool, len(removed))
	for _, rid := range removed {
		gone[rid] = true
	}

	for _, n := range st.Nodes {
		if n == nil || gone[n.ID] {
			continue
		}
		n.Children = filterIDs(n.Children, gone)
	}
	st.Order = filterIDs(st.Order, gone)
	for _, rid := range removed {
		delete(st.Nodes, rid)
	}
	return removed, nil
}

func RenameNode(st *model.ManuscriptStructure, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	n, ok := st.FindNode(strings.TrimSpace(id))
	if !ok {
		return NotFoundError{Kind: "node", ID: id}
	}
	n.Title = title
	return nil
}

// UpdateWordCount is the only writer of ManuscriptNode.WordCount.
func UpdateWordCount(st *model.ManuscriptStructure, id string, count int) error {
	n, ok := st.FindNode(strings.TrimSpace(id))
	if !ok {
		return NotFoundError{Kind: "node", ID: id}
	}
	if count < 0 {
		count = 0
	}
	n.WordCount = count
	return nil
}

// ReorderChildren replaces parentID's children with newOrder. The member sets must match exactly.
func ReorderChildren(st *model.ManuscriptStructure, parentID string, newOrder []string) error {
	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		parentID = st.Root
	}
	parent, ok := st.FindNode(parentID)
	if !ok {
		return ParentError{ParentID: parentID}
	}

	current := make(map[string]bool, len(parent.Children))
	for _, c := range parent.Children {
		current[c] = true
	}
	seen := make(map[string]bool, len(newOrder))
	var extra, missing []string
	for _, c := range newOrder {
		if !current[c] || seen[c] {
			extra = append(extra, c)
			continue
		}
		seen[c] = true
	}
	for _, c := range parent.Children {
		if !seen[c] {
			missing = append(missing, c)
		}
	}
	if len(extra) > 0 || len(missing) > 0 {
		return ChildSetError{ParentID: parentID, Missing: missing, Extra: extra}
	}

	parent.Children = append([]string{}, newOrder...)
	return nil
}

// MoveNode re-parents id under newParentID at index (clamped; negative appends).
func MoveNode(st *model.ManuscriptStructure, id, newParentID string, index int) error {
	id = strings.TrimSpace(id)
	if _, ok := st.FindNode(id); !ok {
		return NotFoundError{Kind: "node", ID: id}
	}
	if id == st.Root {
		return ErrRootNode
	}
	newParentID = strings.TrimSpace(newParentID)
	if newParentID == "" {
		newParentID = st.Root
	}
	parent, ok := st.FindNode(newParentID)
	if !ok {
		return ParentError{ParentID: newParentID}
	}
	for _, sub := range collectSubtreeIDs(st, id) {
		if sub == newParentID {
			return ErrCycle
		}
	}

	only := map[string]bool{id: true}
	if oldParentID, ok := st.ParentOf(id); ok {
		old := st.Nodes[oldParentID]
		old.Children = filterIDs(old.Children, only)
	}

	kids := parent.Children
	if index < 0 || index > len(kids) {
		index = len(kids)
	}
	next := make([]string, 0, len(kids)+1)
	next = append(next, kids[:index]...)
	next = append(next, id)
	next = append(next, kids[index:]...)
	parent.Children = next
	return nil
}

func SetStatus(st *model.ManuscriptStructure, id string, status model.NodeStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	n, ok := st.FindNode(strings.TrimSpace(id))
	if !ok {
		return NotFoundError{Kind: "node", ID: id}
	}
	n.Status = status
	return nil
}

// SetMood sets or clears (empty string) the node's mood.
func SetMood(st *model.ManuscriptStructure, id, mood string) error {
	n, ok := st.FindNode(strings.TrimSpace(id))
	if !ok {
		return NotFoundError{Kind: "node", ID: id}
	}
	n.Mood = optional(mood)
	return nil
}

func SetPointOfView(st *model.ManuscriptStructure, id, pov string) error {
	n, ok := st.FindNode(strings.TrimSpace(id))
	if !ok {
		return NotFoundError{Kind: "node", ID: id}
	}
	n.PointOfView = optional(pov)
	return nil
}

// Walk visits nodes depth-first in children order starting at the root's children.
func Walk(st *model.ManuscriptStructure, fn func(n *model.ManuscriptNode, depth int)) {
	if st == nil {
		return
	}
	seen := map[string]bool{}
	var visit func(id string, depth int)
	visit = func(id string, depth int) {
		if seen[id] {
			return
		}
		seen[id] = true
		n, ok := st.FindNode(id)
		if !ok {
			return
		}
		fn(n, depth)
		for _, c := range n.Children {
			visit(c, depth+1)
		}
	}
	if root, ok := st.FindNode(st.Root); ok {
		seen[root.ID] = true
		for _, c := range root.Children {
			visit(c, 0)
		}
	}
}

func collectSubtreeIDs(st *model.ManuscriptStructure, rootID string) []string {
	out := []string{}
	seen := map[string]bool{}
	var walk func(id string)
	walk = func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
		if n, ok := st.FindNode(id); ok {
			for _, ch := range n.Children {
				walk(ch)
			}
		}
	}
	walk(rootID)
	return out
}

func filterIDs(ids []string, drop map[string]bool) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
