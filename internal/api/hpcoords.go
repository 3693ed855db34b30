package api

import (
	"context"
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/determined-ai/hpcoords/internal/filter"
	"github.com/determined-ai/hpcoords/internal/stream"
	"github.com/determined-ai/hpcoords/internal/view"
	"github.com/determined-ai/hpcoords/pkg/model"
	"github.com/determined-ai/hpcoords/pkg/syncx/errgroupx"
)

var errSocketClosed = errors.New("socket closed")

// SelectMessage picks the progress point and metric to plot.
type SelectMessage struct {
	BatchesProcessed int              `json:"batches_processed"`
	Metric           model.MetricName `json:"metric"`
}

// ClientMessage is a message from a parallel coordinates viewer. Any combination of fields may
// be set; a select is applied last.
type ClientMessage struct {
	Select *SelectMessage `json:"select,omitempty"`
	// Constraints replaces the active constraints. null clears them.
	Constraints json.RawMessage `json:"constraints,omitempty"`
	// HParams picks the hyperparameter axes. An empty list shows all of them.
	HParams *[]string `json:"hparams,omitempty"`
}

// ServerMessage is a message to a parallel coordinates viewer.
type ServerMessage struct {
	Frame *view.Frame `json:"frame,omitempty"`
	Error string      `json:"error,omitempty"`
}

// HPCoords serves the interactive parallel coordinates protocol over a websocket. Every select
// replaces the previous subscription; frames of superseded selections are never sent.
func (s *Server) HPCoords(c echo.Context) error {
	args := struct {
		ExperimentID int `path:"experiment_id"`
	}{}
	if err := BindArgs(&args, c); err != nil {
		return err
	}
	ctx := c.Request().Context()
	exp, err := s.experiments.Get(ctx, args.ExperimentID)
	if err != nil {
		return err
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already replied.
		log.WithError(err).Debug("failed to upgrade hp-coords connection")
		return nil
	}

	sub := stream.NewSubscriber(
		s.poller(nil, nil), "db", s.experiments.IsTerminal)
	defer sub.Close()

	session := &hpCoordsSession{
		conn: conn,
		sub:  sub,
		exp:  exp,
		opts: view.Options{Experiment: exp},
		log: log.WithFields(log.Fields{
			"component":     "hp-coords",
			"experiment-id": exp.ID,
		}),
	}
	err = session.run(ctx)
	if err != nil && !errors.Is(err, errSocketClosed) && !errors.Is(err, context.Canceled) {
		session.log.WithError(err).Warn("hp-coords session failed")
	}
	return nil
}

type inbound struct {
	msg ClientMessage
	err error
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

type hpCoordsSession struct {
	conn  *websocket.Conn
	sub   *stream.Subscriber
	exp   *model.Experiment
	opts  view.Options
	token uint64
	log   *log.Entry
}

func (h *hpCoordsSession) run(ctx context.Context) error {
	g := errgroupx.WithContext(ctx)
	msgs := make(chan inbound)
	updates := make(chan stream.Update)

	g.Go(func(ctx context.Context) error {
		<-ctx.Done()
		if err := h.conn.Close(); err != nil {
			h.log.WithError(err).Debug("error closing hp-coords socket")
		}
		return nil
	})

	g.Go(func(ctx context.Context) error {
		for {
			var in inbound
			if err := h.conn.ReadJSON(&in.msg); err != nil {
				if !isDecodeError(err) {
					if websocket.IsUnexpectedCloseError(
						err, websocket.CloseGoingAway, websocket.CloseNormalClosure,
					) {
						h.log.WithError(err).Debug("unexpected close error")
					}
					return errSocketClosed
				}
				in.err = err
			}
			select {
			case msgs <- in:
			case <-ctx.Done():
				return nil
			}
		}
	})

	g.Go(func(ctx context.Context) error {
		for {
			u, err := h.sub.Next(ctx)
			if err != nil {
				return nil
			}
			select {
			case updates <- u:
			case <-ctx.Done():
				return nil
			}
		}
	})

	g.Go(func(ctx context.Context) error {
		for {
			select {
			case in := <-msgs:
				if in.err != nil {
					if err := h.write(ServerMessage{Error: "malformed message: " + in.err.Error()}); err != nil {
						return err
					}
					continue
				}
				if err := h.handle(ctx, in.msg); err != nil {
					return err
				}
			case u := <-updates:
				if u.Token != h.token {
					continue
				}
				frame := view.Build(u, h.opts)
				if err := h.write(ServerMessage{Frame: &frame}); err != nil {
					return err
				}
			case <-ctx.Done():
				return nil
			}
		}
	})

	return g.Wait()
}

func (h *hpCoordsSession) handle(ctx context.Context, msg ClientMessage) error {
	if len(msg.Constraints) > 0 {
		var cs filter.Constraints
		if err := json.Unmarshal(msg.Constraints, &cs); err != nil {
			return h.write(ServerMessage{Error: "invalid constraints: " + err.Error()})
		}
		h.opts.Constraints = cs
	}
	if msg.HParams != nil {
		h.opts.HParams = *msg.HParams
	}

	if msg.Select != nil {
		token, err := h.sub.Select(ctx, model.SnapshotKey{
			ExperimentID:     h.exp.ID,
			BatchesProcessed: msg.Select.BatchesProcessed,
			Metric:           msg.Select.Metric,
		})
		if err != nil {
			return h.write(ServerMessage{Error: err.Error()})
		}
		h.token = token
		// The loading frame for the new selection arrives through the subscriber.
		return nil
	}

	// Constraint and axis changes re-render the current selection.
	if u, ok := h.sub.Current(); ok && u.Token == h.token {
		frame := view.Build(u, h.opts)
		return h.write(ServerMessage{Frame: &frame})
	}
	return nil
}

func (h *hpCoordsSession) write(msg ServerMessage) error {
	bs, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encoding hp-coords message")
	}
	if err := h.conn.WriteMessage(websocket.TextMessage, bs); err != nil {
		return errors.Wrap(errSocketClosed, err.Error())
	}
	return nil
}
