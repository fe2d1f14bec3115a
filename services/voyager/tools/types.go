// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tools defines the agent's tool surface: typed argument
// schemas, the provider adapters behind them, and the registry that
// dispatches planned calls through the resilience layer.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianVoyage/services/voyager/datatypes"
)

// Errors the registry surfaces to the orchestrator. All of them are
// tool failures: logged, excluded from facts, never fatal to a turn.
var (
	ErrUnknownTool = errors.New("unknown tool")
	ErrInvalidArgs = errors.New("invalid tool arguments")
)

// Tool is one provider adapter. Invoke returns facts sourced from the
// provider; latency stamping is the registry's job.
type Tool interface {
	// Name is the registry key used in plans ("weather", "flights", ...).
	Name() string

	// Host is the destination host for scheduling and blocklisting.
	Host() string

	// Invoke executes the call with validated arguments.
	Invoke(ctx context.Context, args map[string]string) ([]datatypes.Fact, error)
}

var argValidate = validator.New(validator.WithRequiredStructEnabled())

// Argument schemas, one per tool. Plans carry loosely typed string
// maps; these structs are the typed boundary they must pass before a
// provider is dispatched.
type (
	WeatherArgs struct {
		City  string `validate:"required"`
		Month string
		Dates string
	}

	CountryArgs struct {
		Country string `validate:"required"`
	}

	AttractionsArgs struct {
		City string `validate:"required"`
	}

	FlightsArgs struct {
		Origin      string `validate:"required,len=3,alpha"`
		Destination string `validate:"required,len=3,alpha"`
		Dates       string
	}

	PolicyArgs struct {
		Topic string `validate:"required"`
	}

	WebSearchArgs struct {
		Query string `validate:"required"`
	}
)

// validateArgs maps a plan's raw argument map onto the tool's typed
// schema. A tool name without a schema is rejected as unknown rather
// than passed through unchecked.
func validateArgs(tool string, args map[string]string) error {
	var schema any
	switch tool {
	case "weather":
		schema = WeatherArgs{City: args["city"], Month: args["month"], Dates: args["dates"]}
	case "country":
		schema = CountryArgs{Country: args["country"]}
	case "attractions":
		schema = AttractionsArgs{City: args["city"]}
	case "flights":
		schema = FlightsArgs{Origin: args["origin"], Destination: args["destination"], Dates: args["dates"]}
	case "policy":
		schema = PolicyArgs{Topic: args["topic"]}
	case "websearch":
		schema = WebSearchArgs{Query: args["query"]}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}
	if err := argValidate.Struct(schema); err != nil {
		return fmt.Errorf("%w for %q: %v", ErrInvalidArgs, tool, err)
	}
	return nil
}
