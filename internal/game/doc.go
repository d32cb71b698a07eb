// Package game implements the rules engine for the bluffing card game.
//
// The main type is Session, which holds the full hidden state of one
// game: every hand, the face-down center pile, whose turn it is, and
// the rank the current player must claim. All moves go through two
// operations, PlayCards and CallBS. Illegal moves are rejected with a
// typed error and leave the state untouched.
//
// # Basic Usage
//
// Create a session, start it, and apply moves:
//
//	session, err := game.NewSession(rng, []game.Seat{
//		{ID: "alice", Name: "alice"},
//		{ID: "bob", Name: "bob"},
//	})
//	if err != nil { ... }
//	session.Start()
//	view, _ := session.Observe(session.CurrentPlayerID())
//	err = session.PlayCards(view.PlayerID, view.Hand[:1], 1)
//
// Players never see the session directly. Observe returns an
// ObservableState holding only what that player may know: their own
// hand, everyone's hand counts, the pile count, and the claim history.
//
// # Determinism
//
// A session's only source of randomness is the *rand.Rand passed to
// NewSession; two sessions built from the same seed and seats deal
// identical hands and play identically under identical decisions.
//
// # Events
//
// Every accepted transition publishes one event to the configured
// EventSink before the mutex is released, so sink order matches
// transition order. The stream package's Log is the standard sink.
package game
