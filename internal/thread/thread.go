// Package thread turns the flat comment list of a post into the reply tree a
// single caller sees.
package thread

import (
	"bytes"
	"html/template"
	"slices"

	"github.com/google/uuid"

	"zynexhub/internal/models"
)

// Node is a comment decorated with the caller's vote and permissions.
type Node struct {
	models.Comment
	ContentHTML template.HTML    `json:"content_html,omitempty"`
	UserVote    *models.VoteType `json:"user_vote"`
	CanEdit     bool             `json:"can_edit"`
	CanDelete   bool             `json:"can_delete"`
	Replies     []*Node          `json:"replies"`
}

// Build assembles comments into a forest ordered by creation time.
//
// A comment whose parent is missing from the input is returned as a root.
// Parent cycles are broken by promoting the earliest comment of the cycle,
// so every input comment appears exactly once in the output. Votes that do
// not belong to caller are ignored.
func Build(comments []models.Comment, caller models.Caller, votes []models.Vote) []*Node {
	voteOf := make(map[uuid.UUID]models.VoteType, len(votes))
	for _, v := range votes {
		if v.UserID == caller.ID {
			voteOf[v.CommentID] = v.VoteType
		}
	}

	nodes := make(map[uuid.UUID]*Node, len(comments))
	order := make([]*Node, 0, len(comments))
	for _, c := range comments {
		if _, dup := nodes[c.ID]; dup {
			continue
		}
		n := &Node{
			Comment:   c,
			CanEdit:   c.UserID == caller.ID && !c.IsDeleted,
			CanDelete: c.UserID == caller.ID || caller.IsModerator(),
			Replies:   []*Node{},
		}
		if vt, ok := voteOf[c.ID]; ok {
			n.UserVote = &vt
		}
		nodes[c.ID] = n
		order = append(order, n)
	}

	parent := make(map[uuid.UUID]uuid.UUID, len(order))
	for _, n := range order {
		if n.ParentID == nil || *n.ParentID == n.ID {
			continue
		}
		if _, ok := nodes[*n.ParentID]; ok {
			parent[n.ID] = *n.ParentID
		}
	}
	breakCycles(order, nodes, parent)

	roots := make([]*Node, 0)
	for _, n := range order {
		if pid, ok := parent[n.ID]; ok {
			p := nodes[pid]
			p.Replies = append(p.Replies, n)
			continue
		}
		roots = append(roots, n)
	}

	slices.SortStableFunc(roots, compareNodes)
	for _, n := range order {
		slices.SortStableFunc(n.Replies, compareNodes)
	}
	return roots
}

// breakCycles walks parent pointers from every node and, for each cycle it
// finds, drops the parent link of the earliest comment in that cycle.
func breakCycles(order []*Node, nodes map[uuid.UUID]*Node, parent map[uuid.UUID]uuid.UUID) {
	const (
		unseen = iota
		onPath
		done
	)
	state := make(map[uuid.UUID]int, len(order))

	for _, start := range order {
		if state[start.ID] != unseen {
			continue
		}
		var path []uuid.UUID
		pos := make(map[uuid.UUID]int)
		id := start.ID
		for {
			st := state[id]
			if st == done {
				break
			}
			if st == onPath {
				cycle := path[pos[id]:]
				earliest := nodes[cycle[0]]
				for _, cid := range cycle[1:] {
					if compareNodes(nodes[cid], earliest) < 0 {
						earliest = nodes[cid]
					}
				}
				delete(parent, earliest.ID)
				break
			}
			state[id] = onPath
			pos[id] = len(path)
			path = append(path, id)

			pid, ok := parent[id]
			if !ok {
				break
			}
			id = pid
		}
		for _, pid := range path {
			state[pid] = done
		}
	}
}

func compareNodes(a, b *Node) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return bytes.Compare(a.ID[:], b.ID[:])
}

// Walk visits every node depth-first, parents before their replies.
func Walk(roots []*Node, fn func(*Node)) {
	stack := make([]*Node, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		fn(n)
		for i := len(n.Replies) - 1; i >= 0; i-- {
			stack = append(stack, n.Replies[i])
		}
	}
}

// Flatten returns every node of the forest in Walk order.
func Flatten(roots []*Node) []*Node {
	var out []*Node
	Walk(roots, func(n *Node) { out = append(out, n) })
	return out
}

// Find returns the node with the given id, or nil.
func Find(roots []*Node, id uuid.UUID) *Node {
	var found *Node
	Walk(roots, func(n *Node) {
		if found == nil && n.ID == id {
			found = n
		}
	})
	return found
}
