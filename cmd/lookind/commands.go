package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/lookind/internal/ac"
	"github.com/dokzlo13/lookind/internal/app"
	"github.com/dokzlo13/lookind/internal/auxstore"
	"github.com/dokzlo13/lookind/internal/config"
	"github.com/dokzlo13/lookind/internal/mqtt"
	"github.com/dokzlo13/lookind/internal/remote"
)

var errUsage = errors.New("usage")

// runCommand executes a one-off command against the device.
func runCommand(cfg *config.Config, cmd string, args []string) error {
	services, err := app.NewServices(cfg, "cli")
	if err != nil {
		return err
	}
	defer services.Close()

	ctx := app.SignalContext()

	switch cmd {
	case "remotes":
		return remotesCommand(ctx, services, args)
	case "learn":
		return learnCommand(ctx, services, args)
	case "trigger":
		if len(args) != 2 {
			return errUsage
		}
		return services.Remotes.Trigger(ctx, args[0], args[1])
	case "functions":
		if len(args) != 3 || args[0] != "delete" {
			return errUsage
		}
		return services.Remotes.DeleteFunction(ctx, args[1], args[2])
	case "ac":
		return acCommand(ctx, services, args)
	case "sensor":
		return sensorCommand(ctx, services, args)
	case "history":
		if len(args) != 1 {
			return errUsage
		}
		entries, err := services.Ledger.GetByRemote(args[0], 50)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, entries)
	}
	return errUsage
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func remotesCommand(ctx context.Context, s *app.Services, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	sub, args := args[0], args[1:]

	switch sub {
	case "list":
		remotes, err := s.Remotes.List(ctx)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, remotes)

	case "show":
		if len(args) != 1 {
			return errUsage
		}
		r, err := s.Remotes.Open(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, r)

	case "create":
		fs := flag.NewFlagSet("remotes create", flag.ContinueOnError)
		name := fs.String("name", "", "Remote name")
		typ := fs.String("type", "custom", "Remote type, name or hex")
		id := fs.String("uuid", "", "Remote UUID, generated when empty")
		extra := fs.String("extra", "", "Codeset for air conditioners")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		t, err := remote.ParseType(*typ)
		if err != nil {
			return err
		}
		created, err := s.Remotes.Create(ctx, remote.Definition{UUID: *id, Name: *name, Type: t, Extra: *extra})
		if err != nil {
			return err
		}
		fmt.Println(created)
		return nil

	case "update":
		if len(args) < 1 {
			return errUsage
		}
		fs := flag.NewFlagSet("remotes update", flag.ContinueOnError)
		name := fs.String("name", "", "New name")
		typ := fs.String("type", "", "New type, name or hex")
		extra := fs.String("extra", "", "New codeset")
		if err := fs.Parse(args[1:]); err != nil {
			return errUsage
		}
		var changes remote.Changes
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "name":
				changes.Name = name
			case "extra":
				changes.Extra = extra
			}
		})
		if *typ != "" {
			t, err := remote.ParseType(*typ)
			if err != nil {
				return err
			}
			changes.Type = &t
		}
		return s.Remotes.Update(ctx, args[0], changes)

	case "delete":
		if len(args) != 1 {
			return errUsage
		}
		return s.Remotes.Delete(ctx, args[0])

	case "export":
		doc, err := s.Aux.Export()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			return printJSON(os.Stdout, doc)
		}
		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		return printJSON(f, doc)

	case "import":
		if len(args) != 1 {
			return errUsage
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var doc auxstore.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("invalid export file: %w", err)
		}
		n, err := s.Aux.Import(&doc)
		if err != nil {
			return err
		}
		log.Info().Int("functions", n).Str("file", args[0]).Msg("Functions imported")
		return nil
	}
	return errUsage
}

func learnCommand(ctx context.Context, s *app.Services, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	id, name := args[0], args[1]

	log.Info().Str("uuid", id).Str("function", name).Msg("Point the remote at the device and press the button repeatedly")
	res, err := s.Remotes.Learn(ctx, id, name, s.LearnSession())
	if err != nil {
		return err
	}
	fmt.Printf("learned %s/%s from %d of %d signals\n", id, name, res.Matches, res.Captured)
	return nil
}

func acCommand(ctx context.Context, s *app.Services, args []string) error {
	if len(args) < 2 {
		return errUsage
	}
	sub, id := args[0], args[1]

	switch sub {
	case "state":
		snap, err := s.AC.State(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, snap)

	case "set":
		cmd, err := parseACFlags(id, args[2:])
		if err != nil {
			return err
		}
		start := time.Now()
		st, err := s.AC.Update(ctx, id, cmd.Mutate)
		if err != nil {
			return err
		}
		log.Info().Str("uuid", id).Str("status", st.String()).Dur("took", time.Since(start)).Msg("AC status confirmed")
		return nil
	}
	return errUsage
}

// parseACFlags builds the same partial change an MQTT set message carries.
func parseACFlags(id string, args []string) (mqtt.SetCommand, error) {
	fs := flag.NewFlagSet("ac set", flag.ContinueOnError)
	mode := fs.String("mode", "", "Operating mode")
	temp := fs.Int("temp", 0, "Target temperature in °C")
	tempF := fs.Float64("temp-f", 0, "Target temperature in °F")
	fan := fs.String("fan", "", "Fan speed")
	swing := fs.String("swing", "", "Swing mode")
	code := fs.String("code", "", "Raw status code, 4 hex digits")
	if err := fs.Parse(args); err != nil {
		return mqtt.SetCommand{}, errUsage
	}

	cmd := mqtt.SetCommand{UUID: id, Code: *code}
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "mode":
			var m ac.OperatingMode
			if m, err = ac.ParseOperatingMode(*mode); err == nil {
				cmd.Mode = &m
			}
		case "temp":
			cmd.Temperature = temp
		case "temp-f":
			cmd.TemperatureF = tempF
		case "fan":
			var v ac.FanSpeed
			if v, err = ac.ParseFanSpeed(*fan); err == nil {
				cmd.Fan = &v
			}
		case "swing":
			var v ac.SwingMode
			if v, err = ac.ParseSwingMode(*swing); err == nil {
				cmd.Swing = &v
			}
		}
	})
	if err != nil {
		return mqtt.SetCommand{}, err
	}

	// Reuse the payload rules through the JSON form.
	payload, err := json.Marshal(cmd)
	if err != nil {
		return mqtt.SetCommand{}, err
	}
	return mqtt.ParseSetCommand(id, payload)
}

func sensorCommand(ctx context.Context, s *app.Services, args []string) error {
	if len(args) == 0 {
		names, err := s.Client.SensorNames(ctx)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, names)
	}
	reading, err := s.Client.Sensor(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, reading.Values)
}
