// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"strings"

	"github.com/jeranaias/streamchat/internal/tags"
)

// =============================================================================
// THINK INJECTOR
// =============================================================================

// ThinkInjector normalizes a reasoning model's fragment stream so that
// downstream stages can rely on the output starting with a reasoning
// open marker. Some model checkpoints emit the marker themselves and
// some skip straight to chain-of-thought text; the injector makes both
// look the same.
//
// The only buffering is the undecided window: fragments are held while
// the accumulated text is still a prefix of the marker and the presence
// check cannot be answered yet. Once the decision is made (at most
// len(marker) bytes in), every fragment passes straight through. The
// marker is synthesized at most once, and never for a stream that
// produces no fragments at all.
type ThinkInjector struct {
	emit    func(string) error
	decided bool
	pending strings.Builder
}

// NewThinkInjector creates an injector that forwards output to emit.
func NewThinkInjector(emit func(string) error) *ThinkInjector {
	return &ThinkInjector{emit: emit}
}

// Write feeds one fragment through the injector. Errors from the
// downstream emit function propagate unchanged.
func (t *ThinkInjector) Write(fragment string) error {
	if t.decided {
		return t.emit(fragment)
	}

	t.pending.WriteString(fragment)
	pending := t.pending.String()

	switch {
	case strings.HasPrefix(pending, tags.ThinkOpen):
		// Marker already present, pass everything through unchanged.
		return t.decide(pending)
	case strings.HasPrefix(tags.ThinkOpen, pending):
		// Could still turn into the marker, keep holding.
		return nil
	default:
		// Cannot be the marker, inject it before the held text.
		return t.decide(tags.ThinkOpen + pending)
	}
}

// Close flushes any text still held by an undecided injector. A stream
// that ended while the accumulated text was a bare marker prefix lacks
// the marker, so it gets the injection; a stream with no fragments gets
// nothing.
func (t *ThinkInjector) Close() error {
	if t.decided || t.pending.Len() == 0 {
		return nil
	}
	pending := t.pending.String()
	if strings.HasPrefix(pending, tags.ThinkOpen) {
		return t.decide(pending)
	}
	return t.decide(tags.ThinkOpen + pending)
}

func (t *ThinkInjector) decide(out string) error {
	t.decided = true
	t.pending.Reset()
	return t.emit(out)
}

// =============================================================================
// REASONING SPLITTER
// =============================================================================

// ReasoningSplitter partitions marked-up model output into reasoning
// text (between the reasoning markers) and normal content. The markers
// themselves are consumed. A marker split across fragment boundaries is
// handled by holding back the longest suffix that could still become
// one, so marker bytes never leak to either side.
type ReasoningSplitter struct {
	emitText      func(string) error
	emitReasoning func(string) error
	inReasoning   bool
	carry         string
}

// NewReasoningSplitter creates a splitter with separate sinks for
// content and reasoning text.
func NewReasoningSplitter(emitText, emitReasoning func(string) error) *ReasoningSplitter {
	return &ReasoningSplitter{
		emitText:      emitText,
		emitReasoning: emitReasoning,
	}
}

// Write feeds one fragment through the splitter.
func (s *ReasoningSplitter) Write(fragment string) error {
	s.carry += fragment

	for {
		marker := tags.ThinkOpen
		if s.inReasoning {
			marker = tags.ThinkClose
		}

		if idx := strings.Index(s.carry, marker); idx >= 0 {
			if err := s.emitCurrent(s.carry[:idx]); err != nil {
				return err
			}
			s.carry = s.carry[idx+len(marker):]
			s.inReasoning = !s.inReasoning
			continue
		}

		head, tail := tags.HoldbackSplit(s.carry, marker)
		s.carry = tail
		return s.emitCurrent(head)
	}
}

// Close flushes held-back text. An unterminated reasoning block flushes
// to the reasoning side; the partial marker suffix was never a marker,
// so it is emitted as ordinary text for its side.
func (s *ReasoningSplitter) Close() error {
	carry := s.carry
	s.carry = ""
	return s.emitCurrent(carry)
}

func (s *ReasoningSplitter) emitCurrent(text string) error {
	if text == "" {
		return nil
	}
	if s.inReasoning {
		return s.emitReasoning(text)
	}
	return s.emitText(text)
}
