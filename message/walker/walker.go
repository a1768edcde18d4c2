// Package walker visits every part of a message tree, depth first.
package walker

import (
	"github.com/swiftmailer/swiftmailer-sub001/message"
)

// Parts is called for each part visited, with the depth of the part (0 for
// the part the walk started at) and its index among its siblings.
type Parts func(depth, i int, part message.Part) error

// Walk visits msg and all of its sub-parts, depth first, parents before their
// children. If w returns an error, the walk stops and returns it.
func (w Parts) Walk(msg message.Part) error {
	type frame struct {
		depth, i int
		part     message.Part
	}

	stack := []frame{{0, 0, msg}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := w(f.depth, f.i, f.part); err != nil {
			return err
		}

		ps := f.part.GetParts()
		for i := len(ps) - 1; i >= 0; i-- {
			stack = append(stack, frame{f.depth + 1, i, ps[i]})
		}
	}

	return nil
}

// WalkLeaves works like Walk, but only leaf parts are passed to w.
func (w Parts) WalkLeaves(msg message.Part) error {
	var lw Parts = func(depth, i int, part message.Part) error {
		if part.IsMultipart() {
			return nil
		}
		return w(depth, i, part)
	}
	return lw.Walk(msg)
}

// WalkBranches works like Walk, but only parts with sub-parts are passed to
// w.
func (w Parts) WalkBranches(msg message.Part) error {
	var bw Parts = func(depth, i int, part message.Part) error {
		if !part.IsMultipart() {
			return nil
		}
		return w(depth, i, part)
	}
	return bw.Walk(msg)
}
