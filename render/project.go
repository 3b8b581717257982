// Package render projects the flat conversation log into the display
// sequence: consecutive generic tool messages collapse into groups,
// citations trail the assistant message they support, and graphs lead it.
package render

import (
	"strings"

	"github.com/adoptiveai/ragchat/chat"
)

// ItemKind discriminates display items.
type ItemKind int

const (
	// ItemSingle is one message rendered on its own.
	ItemSingle ItemKind = iota
	// ItemToolGroup is a run of consecutive generic tool messages
	// rendered as one collapsed block.
	ItemToolGroup
)

// Item is one element of the display sequence.
type Item struct {
	Kind    ItemKind
	Message chat.Message
	Group   []chat.Message
}

// placeholderToken is the assistant content some backends emit while
// deciding what to do; it carries no displayable text.
const placeholderToken = "**"

// Project computes the display sequence for a log snapshot. It is a pure
// single pass: the same input always yields the same output.
//
// Ordering rules: generic tool messages group until a non-tool message
// arrives; graph tool messages are emitted before the next assistant
// message, citation tool messages after it; system messages flush the
// buffers but do not display; assistant messages with empty or
// placeholder content are suppressed unless they end the log (the
// streaming placeholder).
func Project(messages []chat.Message) []Item {
	var (
		items       []Item
		toolGroup   []chat.Message
		graphs      []chat.Message
		citations   []chat.Message
		pendingAI   *chat.Message
		havePending bool
	)

	single := func(m chat.Message) {
		items = append(items, Item{Kind: ItemSingle, Message: m})
	}
	flushToolGroup := func() {
		if len(toolGroup) > 0 {
			items = append(items, Item{Kind: ItemToolGroup, Group: toolGroup})
			toolGroup = nil
		}
	}
	flushGraphs := func() {
		for _, g := range graphs {
			single(g)
		}
		graphs = nil
	}
	flushPendingAI := func() {
		if havePending {
			single(*pendingAI)
			for _, c := range citations {
				single(c)
			}
			citations = nil
			pendingAI = nil
			havePending = false
		}
	}
	flushCitations := func() {
		for _, c := range citations {
			single(c)
		}
		citations = nil
	}

	for i, msg := range messages {
		isLast := i == len(messages)-1
		content := strings.TrimSpace(msg.Content)

		if msg.Role == chat.RoleAssistant && (content == "" || content == placeholderToken) && !isLast {
			// Historical intermediate states; emitting them would break
			// tool groups and flush citation buffers prematurely.
			continue
		}

		switch {
		case msg.Role == chat.RoleTool:
			switch msg.Data.(type) {
			case chat.CitationData:
				citations = append(citations, msg)
			case chat.GraphData:
				graphs = append(graphs, msg)
			default:
				toolGroup = append(toolGroup, msg)
			}
		case msg.Role == chat.RoleAssistant:
			flushToolGroup()
			flushGraphs()
			flushPendingAI()
			if content == placeholderToken {
				continue
			}
			m := msg
			pendingAI = &m
			havePending = true
		default:
			flushToolGroup()
			flushGraphs()
			flushPendingAI()
			flushCitations()
			if msg.Role != chat.RoleSystem {
				single(msg)
			}
		}
	}

	flushToolGroup()
	flushGraphs()
	if havePending {
		flushPendingAI()
	} else {
		flushCitations()
	}
	return items
}
