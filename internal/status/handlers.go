package status

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chinyancb/sbifx/internal/position"
)

type callJSON struct {
	Family     string             `json:"family"`
	Position   string             `json:"position"`
	ComputedAt *time.Time         `json:"computed_at,omitempty"`
	Evidence   map[string]float64 `json:"evidence,omitempty"`
}

func toCallJSON(c position.Call) callJSON {
	out := callJSON{Family: string(c.Family), Position: c.Direction.String(), Evidence: c.Evidence}
	if !c.ComputedAt.IsZero() {
		at := c.ComputedAt
		out.ComputedAt = &at
	}
	return out
}

type judgeJSON struct {
	Latest  callJSON   `json:"latest"`
	History []callJSON `json:"history"`
}

type decisionJSON struct {
	ID          string    `json:"id"`
	Position    string    `json:"position"`
	CommittedAt time.Time `json:"committed_at"`
	Marker      string    `json:"marker"`
	StochAt     time.Time `json:"stoch_at"`
	MacdAt      time.Time `json:"macd_at"`
}

type arbiterJSON struct {
	State     string         `json:"state"`
	Committed bool           `json:"committed"`
	Cycles    uint64         `json:"cycles"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
	Decisions []decisionJSON `json:"decisions"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) status(c *gin.Context) {
	judges := make(map[string]judgeJSON, len(s.judges))
	for _, j := range s.judges {
		hist := j.History()
		jj := judgeJSON{Latest: toCallJSON(j.Latest()), History: make([]callJSON, len(hist))}
		for i, h := range hist {
			jj.History[i] = toCallJSON(h)
		}
		judges[string(j.Family())] = jj
	}

	st := s.arb.Status()
	aj := arbiterJSON{
		State:     st.State.String(),
		Committed: st.Committed,
		Cycles:    st.Cycles,
		Decisions: []decisionJSON{},
	}
	if !st.UpdatedAt.IsZero() {
		at := st.UpdatedAt
		aj.UpdatedAt = &at
	}
	for _, d := range s.arb.Decisions() {
		aj.Decisions = append(aj.Decisions, decisionJSON{
			ID:          d.ID,
			Position:    d.Direction.String(),
			CommittedAt: d.CommittedAt,
			Marker:      d.Marker,
			StochAt:     d.StochAt,
			MacdAt:      d.MacdAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"judges": judges, "arbiter": aj})
}

func (s *Server) positions(c *gin.Context) {
	list, err := s.markers.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(list))
	for _, m := range list {
		out = append(out, gin.H{"name": m.Name, "position": m.Direction.String(), "at": m.At})
	}
	c.JSON(http.StatusOK, gin.H{"dir": s.markers.Dir(), "markers": out})
}
