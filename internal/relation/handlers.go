package relation

import (
	"fmt"
	"sort"

	"github.com/nidhogg/curia/internal/event"
)

// Bus handlers. Every handler ignores events the owner produced:
// members hold no relationship toward themselves.

// onSpeech shifts political alignment toward or away from the speaker,
// depending on whether their stance matches the owner's current stance
// on the same topic.
func (m *Manager) onSpeech(ev event.Event) error {
	speech, ok := ev.(event.Speech)
	if !ok {
		return fmt.Errorf("speech handler got %T", ev)
	}

	m.mu.Lock()
	m.speakerOf[speech.EventID] = speech.SourceID
	stanceOf := m.stanceOf
	m.mu.Unlock()

	if speech.SourceID == m.ownerID || stanceOf == nil {
		return nil
	}
	own, known := stanceOf(speech.TopicID)
	if !known || own == event.StanceNeutral || speech.Stance == event.StanceNeutral {
		return nil
	}

	delta := speechAgreementDelta
	reason := fmt.Sprintf("agreed with my %s stance on %q", own, speech.Topic)
	if speech.Stance != own {
		delta = -speechAgreementDelta
		reason = fmt.Sprintf("spoke %s against my %s stance on %q", speech.Stance, own, speech.Topic)
	}
	m.Update(speech.SourceID, Political, delta, reason, speech.EventID)
	return nil
}

// onVote adjusts political alignment toward every other participant
// whose ballot matched or opposed the owner's. Abstentions move nothing.
func (m *Manager) onVote(ev event.Event) error {
	vote, ok := ev.(event.Vote)
	if !ok {
		return fmt.Errorf("vote handler got %T", ev)
	}
	own, voted := vote.Ballots[m.ownerID]
	if !voted || own == event.ChoiceAbstain {
		return nil
	}

	// Sorted iteration keeps the paired memory entries in a stable
	// order across replays.
	ids := make([]string, 0, len(vote.Ballots))
	for id := range vote.Ballots {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if id == m.ownerID {
			continue
		}
		choice := vote.Ballots[id]
		if choice == event.ChoiceAbstain {
			continue
		}
		if choice == own {
			m.Update(id, Political, voteAlignedDelta,
				fmt.Sprintf("voted with me on %q", vote.Proposal), vote.EventID)
		} else {
			m.Update(id, Political, -voteOpposedDelta,
				fmt.Sprintf("voted against me on %q", vote.Proposal), vote.EventID)
		}
	}
	return nil
}

// onReaction adjusts personal regard toward whoever reacted to one of
// the owner's own speeches.
func (m *Manager) onReaction(ev event.Event) error {
	reaction, ok := ev.(event.Reaction)
	if !ok {
		return fmt.Errorf("reaction handler got %T", ev)
	}
	if reaction.SourceID == m.ownerID {
		return nil
	}

	m.mu.RLock()
	speaker := m.speakerOf[reaction.TargetEventID]
	m.mu.RUnlock()
	if speaker != m.ownerID {
		return nil
	}

	if reaction.Reaction == event.ReactionPositive {
		m.Update(reaction.SourceID, Personal, reactionPositiveDelta,
			"approved of my speech", reaction.EventID)
	} else {
		m.Update(reaction.SourceID, Personal, -reactionNegativeDelta,
			"disapproved of my speech", reaction.EventID)
	}
	return nil
}

// onInterjection reacts to interruptions aimed at the owner.
func (m *Manager) onInterjection(ev event.Event) error {
	ij, ok := ev.(event.Interjection)
	if !ok {
		return fmt.Errorf("interjection handler got %T", ev)
	}
	if ij.SourceID == m.ownerID || ij.TargetID != m.ownerID {
		return nil
	}

	switch ij.Interjection {
	case event.InterjectSupport:
		m.Update(ij.SourceID, Political, interjectSupportPolitical,
			"backed me mid-speech", ij.EventID)
		m.Update(ij.SourceID, Personal, interjectSupportPersonal,
			"backed me mid-speech", ij.EventID)
	case event.InterjectChallenge:
		m.Update(ij.SourceID, Political, -interjectChallengePolitical,
			"challenged me mid-speech", ij.EventID)
	case event.InterjectEmotional:
		m.Update(ij.SourceID, Personal, -interjectEmotionalPersonal,
			"attacked me mid-speech", ij.EventID)
	}
	return nil
}
