package agent

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/lox/bluffbots/internal/game"
)

// Scripted runs a Lua script for its decisions. The script defines a
// global function decide(view) and returns a table:
//
//	return { action = "play", indices = {1, 3}, reasoning = "..." }
//	return { action = "challenge", reasoning = "...", reaction = "..." }
//
// indices are 1-based positions into view.hand. The script keeps its
// global state between turns, so it can track opponents across a game.
// A Scripted agent is not safe for concurrent use; the driver calls
// Decide one turn at a time.
type Scripted struct {
	state  *lua.LState
	fn     lua.LValue
	name   string
	logger zerolog.Logger
}

// NewScripted loads a Lua agent from a script file
func NewScripted(path string, logger zerolog.Logger) (*Scripted, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading agent script: %w", err)
	}
	return NewScriptedSource(path, string(src), logger)
}

// NewScriptedSource loads a Lua agent from in-memory source. name is
// used in error messages only.
func NewScriptedSource(name, source string, logger zerolog.Logger) (*Scripted, error) {
	state := lua.NewState()
	if err := state.DoString(source); err != nil {
		state.Close()
		return nil, fmt.Errorf("loading agent script %s: %w", name, err)
	}
	fn := state.GetGlobal("decide")
	if fn.Type() != lua.LTFunction {
		state.Close()
		return nil, fmt.Errorf("agent script %s must define a decide function", name)
	}
	return &Scripted{state: state, fn: fn, name: name, logger: logger}, nil
}

// Close releases the interpreter
func (a *Scripted) Close() {
	a.state.Close()
}

func (a *Scripted) Decide(ctx context.Context, view game.ObservableState) (game.Decision, error) {
	a.state.SetContext(ctx)
	defer a.state.RemoveContext()

	err := a.state.CallByParam(lua.P{
		Fn:      a.fn,
		NRet:    1,
		Protect: true,
	}, a.viewTable(view))
	if err != nil {
		return game.Decision{}, fmt.Errorf("agent script %s: %w", a.name, err)
	}

	ret := a.state.Get(-1)
	a.state.Pop(1)

	decision, err := a.decisionFrom(ret)
	if err != nil {
		return game.Decision{}, fmt.Errorf("agent script %s: %w", a.name, err)
	}
	return decision, nil
}

// viewTable converts the observable state into the table handed to
// decide()
func (a *Scripted) viewTable(view game.ObservableState) *lua.LTable {
	L := a.state

	hand := L.NewTable()
	for _, c := range view.Hand {
		card := L.NewTable()
		card.RawSetString("rank", lua.LString(c.Rank.Name()))
		card.RawSetString("suit", lua.LString(c.Suit.Name()))
		card.RawSetString("value", lua.LNumber(c.Rank))
		card.RawSetString("short", lua.LString(c.String()))
		hand.Append(card)
	}

	players := L.NewTable()
	for _, p := range view.Players {
		player := L.NewTable()
		player.RawSetString("id", lua.LString(p.ID))
		player.RawSetString("name", lua.LString(p.Name))
		player.RawSetString("hand_count", lua.LNumber(p.HandCount))
		players.Append(player)
	}

	claims := L.NewTable()
	for _, c := range view.Claims {
		claim := L.NewTable()
		claim.RawSetString("player_id", lua.LString(c.PlayerID))
		claim.RawSetString("player_name", lua.LString(c.PlayerName))
		claim.RawSetString("rank", lua.LString(c.Rank.Name()))
		claim.RawSetString("value", lua.LNumber(c.Rank))
		claim.RawSetString("count", lua.LNumber(c.Count))
		claim.RawSetString("turn", lua.LNumber(c.TurnNumber))
		claims.Append(claim)
	}

	tbl := L.NewTable()
	tbl.RawSetString("player_id", lua.LString(view.PlayerID))
	tbl.RawSetString("player_name", lua.LString(view.PlayerName))
	tbl.RawSetString("hand", hand)
	tbl.RawSetString("players", players)
	tbl.RawSetString("expected_rank", lua.LString(view.ExpectedRank.Name()))
	tbl.RawSetString("expected_value", lua.LNumber(view.ExpectedRank))
	tbl.RawSetString("pile_count", lua.LNumber(view.PileCount))
	tbl.RawSetString("claims", claims)
	tbl.RawSetString("turn_number", lua.LNumber(view.TurnNumber))
	tbl.RawSetString("last_action", lua.LString(view.LastAction))
	tbl.RawSetString("can_challenge", lua.LBool(view.CanChallenge))
	return tbl
}

// decisionFrom converts the script's return table into a Decision
func (a *Scripted) decisionFrom(ret lua.LValue) (game.Decision, error) {
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return game.Decision{}, fmt.Errorf("decide must return a table, got %s", ret.Type())
	}

	decision := game.Decision{
		Reasoning: lua.LVAsString(tbl.RawGetString("reasoning")),
		Reaction:  lua.LVAsString(tbl.RawGetString("reaction")),
	}

	action := lua.LVAsString(tbl.RawGetString("action"))
	switch action {
	case "play", "play_cards":
		decision.Action = game.ActionPlayCards
		indices, err := a.indicesFrom(tbl.RawGetString("indices"))
		if err != nil {
			return game.Decision{}, err
		}
		decision.CardIndices = indices
	case "challenge", "call_bs":
		decision.Action = game.ActionCallBS
	default:
		return game.Decision{}, fmt.Errorf("decide returned unknown action %q", action)
	}
	return decision, nil
}

// indicesFrom converts a 1-based Lua index array into 0-based hand
// indices
func (a *Scripted) indicesFrom(v lua.LValue) ([]int, error) {
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("play action needs an indices table, got %s", v.Type())
	}
	indices := make([]int, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		n, ok := tbl.RawGetInt(i).(lua.LNumber)
		if !ok {
			return nil, fmt.Errorf("indices[%d] is not a number", i)
		}
		indices = append(indices, int(n)-1)
	}
	return indices, nil
}

var _ game.Agent = (*Scripted)(nil)
