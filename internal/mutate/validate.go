package mutate

import (
	"fmt"
	"sort"

	"quillborn-cli/internal/model"
)

type IssueLevel string

const (
	IssueLevelError IssueLevel = "error"
	IssueLevelWarn  IssueLevel = "warn"
)

type Issue struct {
	Level   IssueLevel `json:"level"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
	NodeID  string     `json:"nodeId,omitempty"`
}

type Report struct {
	Issues []Issue `json:"issues"`
}

func (r Report) HasErrors() bool {
	for _, it := range r.Issues {
		if it.Level == IssueLevelError {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants of a manuscript tree.
func Validate(st *model.ManuscriptStructure) Report {
	var issues []Issue
	if st == nil {
		return Report{Issues: []Issue{{Level: IssueLevelError, Code: "missing_structure", Message: "no structure"}}}
	}
	if _, ok := st.FindNode(st.Root); !ok {
		issues = append(issues, Issue{Level: IssueLevelError, Code: "missing_root", Message: "root node not in table", NodeID: st.Root})
	}

	ids := make([]string, 0, len(st.Nodes))
	for id := range st.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	parents := map[string][]string{}
	for _, id := range ids {
		n := st.Nodes[id]
		if n == nil {
			issues = append(issues, Issue{Level: IssueLevelError, Code: "nil_node", Message: "nil node entry", NodeID: id})
			continue
		}
		if n.ID != id {
			issues = append(issues, Issue{Level: IssueLevelError, Code: "id_mismatch", Message: fmt.Sprintf("table key %s holds node %s", id, n.ID), NodeID: id})
		}
		for _, c := range n.Children {
			if _, ok := st.FindNode(c); !ok {
				issues = append(issues, Issue{Level: IssueLevelError, Code: "dangling_child", Message: fmt.Sprintf("child %s of %s does not exist", c, id), NodeID: c})
				continue
			}
			parents[c] = append(parents[c], id)
		}
	}
	for _, id := range ids {
		if ps := parents[id]; len(ps) > 1 {
			issues = append(issues, Issue{Level: IssueLevelError, Code: "multiple_parents", Message: fmt.Sprintf("node referenced %d times (%v)", len(ps), ps), NodeID: id})
		}
		if id == st.Root && len(parents[id]) > 0 {
			issues = append(issues, Issue{Level: IssueLevelError, Code: "root_has_parent", Message: "root is a child of another node", NodeID: id})
		}
	}

	// Anything unreachable from the root is either orphaned or part of a cycle.
	reachable := map[string]bool{}
	var walk func(id string)
	walk = func(id string) {
		if reachable[id] {
			return
		}
		reachable[id] = true
		if n, ok := st.FindNode(id); ok {
			for _, c := range n.Children {
				walk(c)
			}
		}
	}
	walk(st.Root)
	for _, id := range ids {
		if !reachable[id] {
			issues = append(issues, Issue{Level: IssueLevelWarn, Code: "unreachable", Message: "node is not reachable from the root", NodeID: id})
		}
	}

	inOrder := map[string]bool{}
	for _, id := range st.Order {
		if inOrder[id] {
			issues = append(issues, Issue{Level: IssueLevelError, Code: "order_duplicate", Message: "id listed twice in order", NodeID: id})
		}
		inOrder[id] = true
		if _, ok := st.FindNode(id); !ok {
			issues = append(issues, Issue{Level: IssueLevelError, Code: "order_dangling", Message: "order references a missing node", NodeID: id})
		}
	}
	for _, id := range ids {
		if id != st.Root && !inOrder[id] {
			issues = append(issues, Issue{Level: IssueLevelError, Code: "order_missing", Message: "node missing from order", NodeID: id})
		}
	}

	if issues == nil {
		issues = []Issue{}
	}
	return Report{Issues: issues}
}
