package game

import (
	"maps"
	"time"
)

// SeatView is one seat as clients see it.
type SeatView struct {
	ID        string     `json:"id"`
	Stack     int64      `json:"stack"`
	Bet       int64      `json:"bet"`
	Committed int64      `json:"committed"`
	Insurance int64      `json:"insurance,omitempty"`
	Folded    bool       `json:"folded,omitempty"`
	AllIn     bool       `json:"all_in,omitempty"`
	NewEntry  bool       `json:"new_entry,omitempty"`
	Hands     [][]string `json:"hands,omitempty"`
	Values    []int      `json:"values,omitempty"`
}

// PotView is a pot and who can win it.
type PotView struct {
	Amount   int64    `json:"amount"`
	Eligible []string `json:"eligible"`
}

// Outcome summarises a finished hand.
type Outcome struct {
	Payouts     map[string]int64  `json:"payouts"`
	Results     map[string]string `json:"results,omitempty"`
	HouseNet    int64             `json:"house_net,omitempty"`
	TaxWithheld int64             `json:"tax_withheld,omitempty"`
	Cancelled   bool              `json:"cancelled,omitempty"`
}

// View is a snapshot of a table taken between commands.
//
// Views handed to a Notifier still carry every seat's private cards. Call
// For before sending one to a player.
type View struct {
	TableID  string     `json:"table_id"`
	Variant  Variant    `json:"variant"`
	HandID   string     `json:"hand_id,omitempty"`
	Hand     int        `json:"hand"`
	Phase    string     `json:"phase"`
	Stopped  bool       `json:"stopped,omitempty"`
	Seats    []SeatView `json:"seats"`
	Button   string     `json:"button,omitempty"`
	Turn     string     `json:"turn,omitempty"`
	TurnHand int        `json:"turn_hand,omitempty"`
	Deadline time.Time  `json:"deadline,omitzero"`

	Dealer      []string `json:"dealer,omitempty"`
	DealerValue int      `json:"dealer_value,omitempty"`

	Board      []string  `json:"board,omitempty"`
	Pots       []PotView `json:"pots,omitempty"`
	ToCall     int64     `json:"to_call,omitempty"`
	MinRaiseTo int64     `json:"min_raise_to,omitempty"`

	Legal   []string `json:"legal,omitempty"`
	Outcome *Outcome `json:"outcome,omitempty"`

	private map[string]privateView
}

type privateView struct {
	hands  [][]string
	values []int
	legal  []string
	toCall int64
}

// For returns the view as seen from seat. Only that seat's private cards
// are revealed, and legal actions are listed only when it is its turn.
// An empty seat gives the spectator view.
func (v View) For(seat string) View {
	out := v
	out.private = nil
	out.Seats = make([]SeatView, len(v.Seats))
	copy(out.Seats, v.Seats)
	if p, ok := v.private[seat]; ok {
		for i := range out.Seats {
			if out.Seats[i].ID != seat {
				continue
			}
			if p.hands != nil {
				out.Seats[i].Hands = p.hands
			}
			if p.values != nil {
				out.Seats[i].Values = p.values
			}
		}
		out.Legal = p.legal
		out.ToCall = p.toCall
	}
	if v.Outcome != nil {
		o := *v.Outcome
		o.Payouts = maps.Clone(v.Outcome.Payouts)
		o.Results = maps.Clone(v.Outcome.Results)
		out.Outcome = &o
	}
	return out
}

func (v *View) priv(seat string) privateView {
	if v.private == nil {
		v.private = make(map[string]privateView)
	}
	return v.private[seat]
}

func (v *View) setLegal(seat string, legal []string) {
	p := v.priv(seat)
	p.legal = legal
	v.private[seat] = p
}

func (v *View) setToCall(seat string, n int64) {
	p := v.priv(seat)
	p.toCall = n
	v.private[seat] = p
}

func (v *View) setHands(seat string, hands [][]string) {
	p := v.priv(seat)
	p.hands = hands
	v.private[seat] = p
}
