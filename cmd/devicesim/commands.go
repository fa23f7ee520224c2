package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/auth"
	"github.com/yourname/fixyoursleep/internal/motion"
)

type Context struct {
	Server string
	Token  string
	Out    io.Writer
}

func (c *Context) dial() (*websocket.Conn, error) {
	u, err := url.Parse(strings.TrimRight(c.Server, "/") + "/ws")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", c.Token)
	u.RawQuery = q.Encode()
	ws, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.Server, err)
	}
	return ws, nil
}

// printEvents copies every pushed event to out until the connection drops.
func printEvents(ws *websocket.Conn, out io.Writer) error {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		fmt.Fprintln(out, string(data))
	}
}

type ListenCmd struct{}

func (cmd *ListenCmd) Run(ctx *Context) error {
	ws, err := ctx.dial()
	if err != nil {
		return err
	}
	defer ws.Close()
	return printEvents(ws, ctx.Out)
}

type StreamCmd struct {
	Samples     string        `help:"Samples as x,y,z triples separated by ';'." default:"0,0,0.05"`
	File        string        `help:"CSV file of x,y,z rows; overrides --samples." type:"existingfile"`
	Interval    time.Duration `help:"Delay between samples." default:"1s"`
	Loop        bool          `help:"Repeat the samples until interrupted."`
	Unavailable bool          `help:"Report that the phone has no accelerometer."`
}

func (cmd *StreamCmd) Run(ctx *Context) error {
	samples, err := cmd.load()
	if err != nil {
		return err
	}
	ws, err := ctx.dial()
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := ws.WriteJSON(map[string]any{"type": "motion.available", "available": !cmd.Unavailable}); err != nil {
		return err
	}
	if cmd.Unavailable {
		return printEvents(ws, ctx.Out)
	}
	go func() { _ = printEvents(ws, ctx.Out) }()

	for {
		for _, a := range samples {
			msg := map[string]any{"type": "motion.sample", "x": a.X, "y": a.Y, "z": a.Z}
			if err := ws.WriteJSON(msg); err != nil {
				return err
			}
			time.Sleep(cmd.Interval)
		}
		if !cmd.Loop {
			return ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		}
	}
}

func (cmd *StreamCmd) load() ([]motion.Acceleration, error) {
	if cmd.File == "" {
		return parseSamples(cmd.Samples)
	}
	f, err := os.Open(cmd.File)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readSamplesCSV(f)
}

func parseSamples(s string) ([]motion.Acceleration, error) {
	var out []motion.Acceleration
	for _, triple := range strings.Split(s, ";") {
		triple = strings.TrimSpace(triple)
		if triple == "" {
			continue
		}
		a, err := parseTriple(strings.Split(triple, ","))
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no samples given")
	}
	return out, nil
}

func readSamplesCSV(r io.Reader) ([]motion.Acceleration, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.Comment = '#'
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	out := make([]motion.Acceleration, 0, len(rows))
	for _, row := range rows {
		a, err := parseTriple(row)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no samples in file")
	}
	return out, nil
}

func parseTriple(fields []string) (motion.Acceleration, error) {
	if len(fields) != 3 {
		return motion.Acceleration{}, fmt.Errorf("sample %q: want x,y,z", strings.Join(fields, ","))
	}
	var v [3]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return motion.Acceleration{}, fmt.Errorf("sample %q: %w", strings.Join(fields, ","), err)
		}
		v[i] = n
	}
	return motion.Acceleration{X: v[0], Y: v[1], Z: v[2]}, nil
}

type IssueJWTCmd struct {
	Secret string        `help:"Shared HS256 secret." env:"JWT_SECRET" required:""`
	User   string        `help:"User ID to embed." default:"u1"`
	Name   string        `help:"Display name." default:"Demo User"`
	TTL    time.Duration `help:"Token lifetime." default:"24h"`
}

func (cmd *IssueJWTCmd) Run(ctx *Context) error {
	p := auth.NewJWTProvider(cmd.Secret, internal.NopLogger())
	token, err := p.Issue(&internal.User{ID: cmd.User, Name: cmd.Name}, cmd.TTL)
	if err != nil {
		return err
	}
	return json.NewEncoder(ctx.Out).Encode(map[string]string{"token": token})
}
