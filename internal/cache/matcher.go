// Riskguard - Behavioral Anomaly Detection and Security Alerting
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package cache

import "strings"

// Matcher finds any of a fixed set of substrings in a text in a single pass
// using an Aho-Corasick automaton. Matching is case-insensitive.
//
// A Matcher is immutable after construction and safe for concurrent use.
//
// Example:
//
//	m := NewMatcher([]string{"sqlmap", "nikto", "curl"})
//	if p, ok := m.FindFirst("Mozilla/5.0 (compatible; Nikto/2.5.0)"); ok {
//	    // p == "nikto"
//	}
type Matcher struct {
	root     *matchNode
	patterns []string
}

type matchNode struct {
	children map[byte]*matchNode
	failure  *matchNode
	// output holds indices into patterns ending at this node, including
	// those inherited through the failure link.
	output []int
}

func newMatchNode() *matchNode {
	return &matchNode{children: make(map[byte]*matchNode)}
}

// NewMatcher builds a matcher over patterns. Patterns are lowercased and
// trimmed; empty and duplicate patterns are ignored.
func NewMatcher(patterns []string) *Matcher {
	m := &Matcher{root: newMatchNode()}
	seen := make(map[string]struct{}, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		m.insert(len(m.patterns), p)
		m.patterns = append(m.patterns, p)
	}
	m.link()
	return m
}

func (m *Matcher) insert(index int, pattern string) {
	node := m.root
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		next, ok := node.children[ch]
		if !ok {
			next = newMatchNode()
			node.children[ch] = next
		}
		node = next
	}
	node.output = append(node.output, index)
}

// link builds failure links breadth first.
func (m *Matcher) link() {
	queue := make([]*matchNode, 0, len(m.root.children))
	for _, child := range m.root.children {
		child.failure = m.root
		queue = append(queue, child)
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for ch, child := range current.children {
			queue = append(queue, child)

			fail := current.failure
			for fail != nil && fail.children[ch] == nil {
				fail = fail.failure
			}
			if fail == nil {
				child.failure = m.root
				continue
			}
			child.failure = fail.children[ch]
			child.output = append(child.output, child.failure.output...)
		}
	}
}

// step advances the automaton by one byte.
func (m *Matcher) step(node *matchNode, ch byte) *matchNode {
	for node != m.root && node.children[ch] == nil {
		node = node.failure
	}
	if next, ok := node.children[ch]; ok {
		return next
	}
	return m.root
}

// FindFirst returns the pattern whose match ends earliest in text. When
// several patterns end at the same position the one registered first wins.
func (m *Matcher) FindFirst(text string) (string, bool) {
	if len(m.patterns) == 0 {
		return "", false
	}
	text = strings.ToLower(text)
	node := m.root
	for i := 0; i < len(text); i++ {
		node = m.step(node, text[i])
		if len(node.output) > 0 {
			best := node.output[0]
			for _, idx := range node.output[1:] {
				if idx < best {
					best = idx
				}
			}
			return m.patterns[best], true
		}
	}
	return "", false
}

// FindAll returns every distinct pattern that occurs in text, in the order
// their first occurrence ends.
func (m *Matcher) FindAll(text string) []string {
	if len(m.patterns) == 0 {
		return nil
	}
	text = strings.ToLower(text)
	var found []string
	seen := make(map[int]struct{})
	node := m.root
	for i := 0; i < len(text); i++ {
		node = m.step(node, text[i])
		for _, idx := range node.output {
			if _, ok := seen[idx]; ok {
				continue
			}
			seen[idx] = struct{}{}
			found = append(found, m.patterns[idx])
		}
	}
	return found
}

// Contains reports whether any pattern occurs in text.
func (m *Matcher) Contains(text string) bool {
	_, ok := m.FindFirst(text)
	return ok
}

// Len returns the number of distinct patterns.
func (m *Matcher) Len() int {
	return len(m.patterns)
}
