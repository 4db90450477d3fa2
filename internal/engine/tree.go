package engine

import (
	"context"
	"strings"

	"quillborn-cli/internal/model"
	"quillborn-cli/internal/mutate"
)

// CreateChapter creates the chapter file and adds its node under parentID (the root when empty).
func (e *Engine) CreateChapter(ctx context.Context, title, parentID string) (model.ManuscriptNode, error) {
	if err := e.checkParent(parentID); err != nil {
		return model.ManuscriptNode{}, err
	}
	ch, err := e.backend.CreateChapter(ctx, e.path, title)
	if err != nil {
		return model.ManuscriptNode{}, err
	}
	node := model.ManuscriptNode{ID: ch.ID, Title: ch.Title, Kind: model.NodeKindChapter, Status: ch.Status}

	e.mu.Lock()
	err = mutate.AddNode(e.project.Structure, node, parentID)
	if err == nil {
		err = e.saveStructureLocked()
	}
	e.mu.Unlock()
	if err != nil {
		_ = e.backend.DeleteChapter(ctx, e.path, ch.ID)
		return model.ManuscriptNode{}, err
	}
	return node, nil
}

// AddNode adds a structural node. Chapters get a file through CreateChapter; parts and scenes
// only live in the tree.
func (e *Engine) AddNode(ctx context.Context, kind model.NodeKind, title, parentID string) (model.ManuscriptNode, error) {
	if kind == "" || kind == model.NodeKindChapter {
		return e.CreateChapter(ctx, title, parentID)
	}
	if !kind.Valid() || kind == model.NodeKindBook {
		return model.ManuscriptNode{}, mutate.ErrInvalidKind
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return model.ManuscriptNode{}, mutate.ErrEmptyTitle
	}
	node := model.ManuscriptNode{ID: e.newID(), Title: title, Kind: kind}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := mutate.AddNode(e.project.Structure, node, parentID); err != nil {
		return model.ManuscriptNode{}, err
	}
	n, _ := e.project.Structure.FindNode(node.ID)
	return *n, e.saveStructureLocked()
}

func (e *Engine) checkParent(parentID string) error {
	parentID = strings.TrimSpace(parentID)
	if parentID == "" {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.project.Structure.FindNode(parentID); !ok {
		return mutate.ParentError{ParentID: parentID}
	}
	return nil
}

// RemoveNode removes id with its subtree. When the active chapter goes with it, the buffer is
// dropped without saving.
func (e *Engine) RemoveNode(ctx context.Context, id string) ([]string, error) {
	e.mu.Lock()
	removed, err := mutate.RemoveNode(e.project.Structure, id)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	for _, rid := range removed {
		delete(e.detachedIDs, rid)
	}
	err = e.saveStructureLocked()
	e.mu.Unlock()
	if err != nil {
		return removed, err
	}

	active := e.session.ActiveID()
	for _, rid := range removed {
		if rid == active {
			e.session.Close()
			e.palimpsest.Reset("", "")
		}
		e.palimpsest.Clear(rid)
	}
	// Parts and scenes have no file; deleting a missing chapter file is not an error.
	err = e.autosave.Do(ctx, func(ctx context.Context) error {
		for _, rid := range removed {
			if err := e.backend.DeleteChapter(ctx, e.path, rid); err != nil {
				return err
			}
		}
		return nil
	})
	e.persistFragments(ctx)
	return removed, err
}

// RenameNode renames a node and keeps the open buffer and the chapter file in step.
func (e *Engine) RenameNode(ctx context.Context, id, title string) error {
	e.mu.Lock()
	err := mutate.RenameNode(e.project.Structure, id, title)
	if err == nil {
		err = e.saveStructureLocked()
	}
	e.mu.Unlock()
	if err != nil {
		return err
	}
	title = strings.TrimSpace(title)
	e.session.SetTitle(id, title)
	return e.autosave.Do(ctx, func(ctx context.Context) error {
		return e.backend.RenameChapter(ctx, e.path, id, title)
	})
}

func (e *Engine) ReorderChildren(_ context.Context, parentID string, newOrder []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := mutate.ReorderChildren(e.project.Structure, parentID, newOrder); err != nil {
		return err
	}
	return e.saveStructureLocked()
}

func (e *Engine) MoveNode(_ context.Context, id, newParentID string, index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := mutate.MoveNode(e.project.Structure, id, newParentID, index); err != nil {
		return err
	}
	return e.saveStructureLocked()
}

func (e *Engine) SetStatus(ctx context.Context, id string, status model.NodeStatus) error {
	return e.updateMeta(ctx, id, func(st *model.ManuscriptStructure) error {
		return mutate.SetStatus(st, id, status)
	})
}

// SetMood sets or, with an empty mood, clears the node's mood.
func (e *Engine) SetMood(ctx context.Context, id, mood string) error {
	return e.updateMeta(ctx, id, func(st *model.ManuscriptStructure) error {
		return mutate.SetMood(st, id, mood)
	})
}

func (e *Engine) SetPointOfView(ctx context.Context, id, pov string) error {
	return e.updateMeta(ctx, id, func(st *model.ManuscriptStructure) error {
		return mutate.SetPointOfView(st, id, pov)
	})
}

func (e *Engine) updateMeta(ctx context.Context, id string, fn func(st *model.ManuscriptStructure) error) error {
	id = strings.TrimSpace(id)
	e.mu.Lock()
	if err := fn(e.project.Structure); err != nil {
		e.mu.Unlock()
		return err
	}
	n, _ := e.project.Structure.FindNode(id)
	node := *n
	err := e.saveStructureLocked()
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.session.SetStatus(id, node.Status)
	e.session.SetMood(id, node.Mood)
	e.session.SetPointOfView(id, node.PointOfView)
	if node.Kind != model.NodeKindChapter {
		return nil
	}
	return e.autosave.Do(ctx, func(ctx context.Context) error {
		return e.backend.UpdateChapterMeta(ctx, e.path, id, node.Status, node.Mood, node.PointOfView)
	})
}

// CycleStatus advances a node through draft, revised and final.
func (e *Engine) CycleStatus(ctx context.Context, id string) (model.NodeStatus, error) {
	e.mu.Lock()
	n, ok := e.project.Structure.FindNode(strings.TrimSpace(id))
	var cur model.NodeStatus
	if ok {
		cur = n.Status
	}
	e.mu.Unlock()
	if !ok {
		return "", mutate.NotFoundError{Kind: "node", ID: id}
	}
	next := model.StatusDraft
	switch cur {
	case model.StatusDraft:
		next = model.StatusRevised
	case model.StatusRevised:
		next = model.StatusFinal
	}
	return next, e.SetStatus(ctx, id, next)
}
