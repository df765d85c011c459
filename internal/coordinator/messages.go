package coordinator

import (
	"github.com/ahrav/policybot/internal/domain"
	"github.com/ahrav/policybot/internal/generation"
)

// message is the sealed inbound message set for a coordinator. The loop
// switches exhaustively over these types; anything else is a programming
// error and is logged and dropped.
type message interface{ isMessage() }

// submitMsg starts the query lifecycle.
type submitMsg struct{}

// retrievalDoneMsg reports the retrieval stage outcome. Matches is empty,
// never nil, when the stage failed or no retrieval worker was available.
type retrievalDoneMsg struct {
	matches []domain.CandidateMatch
}

// generationDoneMsg reports the generation stage outcome.
type generationDoneMsg struct {
	result generation.Result
}

// deadlineMsg fires when the generation deadline elapses before the
// generation stage reports back.
type deadlineMsg struct{}

func (submitMsg) isMessage() {}

func (retrievalDoneMsg) isMessage() {}

func (generationDoneMsg) isMessage() {}

func (deadlineMsg) isMessage() {}
