package prt_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/prt"
	"github.com/aretw0/prt/pkg/schema"
)

// This example wires a client and a server that exchange one message.
// Function bodies are resumable: each case of the switch is a resume point.
func Example() {
	ping := prt.MustEvent("ping", schema.Machine(), 1, false)
	pong := prt.MustEvent("pong", nil, 1, false)

	start := prt.NewFun("client_start", 1, func(_ prt.Application, m *prt.Machine, f *prt.FunFrame) {
		l := f.Locals()
		switch f.PC() {
		case 0:
			m.Funs().DidNewMachine(1, l, "Server", nil)
		case 1:
			l[1] = f.Continuation().Created
			m.Funs().DidSend(2, l, l[1].(prt.MachineID), ping, m.ID())
		case 2:
			m.Funs().DidReturn(l)
		}
	})
	client := prt.Define("Client")
	client.Add("Waiting").Hot().Entry(start).Goto(pong, "Done")
	client.Add("Done").Cold()

	reply := prt.NewFun("server_reply", 0, func(_ prt.Application, m *prt.Machine, f *prt.FunFrame) {
		l := f.Locals()
		switch f.PC() {
		case 0:
			m.Funs().DidSend(1, l, l[0].(prt.MachineID), pong, nil)
		case 1:
			m.Funs().DidReturn(l)
		}
	})
	server := prt.Define("Server")
	server.Add("Serving").Do(ping, reply)

	program, err := prt.NewProgram(client.MustBuild(), server.MustBuild())
	if err != nil {
		fmt.Println(err)
		return
	}

	cfg := prt.DefaultConfig()
	cfg.Driver.Strategy = "round_robin"
	eng, err := prt.New(program, "Client",
		prt.WithConfig(cfg),
		prt.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer eng.Close()

	res, err := eng.Run(context.Background(), nil)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println("outcome:", res.Outcome)
	for _, rec := range eng.Machines() {
		fmt.Println(rec.Type, rec.States[len(rec.States)-1].State)
	}
	// Output:
	// outcome: ok
	// Client Done
	// Server Serving
}
