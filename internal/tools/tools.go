// Package tools exposes the session controller as MCP tools, so a
// voice or chat agent can drive the cooking session.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mirepoix/souschef/internal/engine"
	"github.com/mirepoix/souschef/internal/logger"
)

// NavigateArgs selects a step either by absolute index or by relative
// direction. Direction wins when both are set.
type NavigateArgs struct {
	Step      int    `json:"step" jsonschema:"description=Target step index (0-based, into the visible step list). Out-of-range values are clamped."`
	Direction string `json:"direction,omitempty" jsonschema:"description=Relative move: 'next' or 'previous'. Overrides step when set."`
}

// StepArgs addresses an optional step; nil means the current one.
type StepArgs struct {
	Step *int `json:"step,omitempty" jsonschema:"description=Step index (0-based). Omit for the current step."`
}

// TimerArgs drives the manage_timer tool.
type TimerArgs struct {
	Action          string `json:"action" jsonschema:"required,description=One of: set, update, toggle, dismiss, get."`
	ID              string `json:"id,omitempty" jsonschema:"description=Timer id. Required for update, toggle, and dismiss."`
	DurationSeconds int    `json:"duration_seconds,omitempty" jsonschema:"description=Countdown length for 'set'. Must be positive and at most 24 hours."`
	Label           string `json:"label,omitempty" jsonschema:"description=Human label, e.g. 'Broth simmer'."`
	Emoji           string `json:"emoji,omitempty" jsonschema:"description=Display emoji."`
	NotifyAt        []int  `json:"notify_at,omitempty" jsonschema:"description=Remaining-seconds thresholds that fire a heads-up. Defaults to [10] for timers over 10 seconds."`
	AddSeconds      int    `json:"add_seconds,omitempty" jsonschema:"description=Seconds to add for 'update'."`
	SubtractSeconds int    `json:"subtract_seconds,omitempty" jsonschema:"description=Seconds to remove for 'update'."`
}

// UnitsArgs drives switch_units.
type UnitsArgs struct {
	Units string `json:"units" jsonschema:"required,description=Target system: 'metric' or 'imperial'."`
}

// SubstituteArgs swaps one ingredient on a step.
type SubstituteArgs struct {
	Step           *int    `json:"step,omitempty" jsonschema:"description=Step index (0-based). Omit for the current step."`
	PlaceholderKey string  `json:"placeholder_key" jsonschema:"required,description=The ingredient's placeholder key on that step."`
	NewName        string  `json:"new_name" jsonschema:"required,description=Replacement ingredient name."`
	NewAmount      float64 `json:"new_amount,omitempty" jsonschema:"description=New amount in the ingredient's unit. Omit or 0 to keep the amount."`
	Note           string  `json:"note,omitempty" jsonschema:"description=Short note for the audit trail, e.g. 'used butter instead of ghee'."`
}

// AdjustArgs changes one ingredient amount on a step.
type AdjustArgs struct {
	Step           *int    `json:"step,omitempty" jsonschema:"description=Step index (0-based). Omit for the current step."`
	PlaceholderKey string  `json:"placeholder_key" jsonschema:"required,description=The ingredient's placeholder key on that step."`
	NewAmount      float64 `json:"new_amount" jsonschema:"required,description=New amount in the ingredient's unit."`
}

// InsertArgs injects a recovery step after the current one.
type InsertArgs struct {
	Title       string `json:"title" jsonschema:"required,description=Short step title."`
	Description string `json:"description" jsonschema:"required,description=Full step instructions."`
}

// Register wires every cooking tool into the MCP server.
func Register(s *server.MCPServer, ctrl *engine.Controller, log *logger.Logger) {
	s.AddTool(mcp.NewTool("get_cooking_state",
		mcp.WithDescription("Return the full session state: every visible step (rendered with current amounts and units), the current step pointer, progress, and all timers. Call this before deciding what to do next."),
	), wrapState(ctrl))

	s.AddTool(mcp.NewTool("navigate_to_step",
		mcp.WithDescription("Move the cook to another step, by index or with direction 'next'/'previous'. Out-of-range targets are clamped, never errors."),
		mcp.WithInputSchema[NavigateArgs](),
	), wrapNavigate(ctrl))

	s.AddTool(mcp.NewTool("mark_step_complete",
		mcp.WithDescription("Mark a step done. Omitting the index completes the current step and advances to the next one. Completing the last open step finishes the session."),
		mcp.WithInputSchema[StepArgs](),
	), wrapComplete(ctrl))

	s.AddTool(mcp.NewTool("skip_step",
		mcp.WithDescription("Skip a step. The step disappears from the visible list but is kept for the session record. Omitting the index skips the current step."),
		mcp.WithInputSchema[StepArgs](),
	), wrapSkip(ctrl))

	s.AddTool(mcp.NewTool("manage_timer",
		mcp.WithDescription("Create, edit, pause/resume, dismiss, or list kitchen timers. 'set' starts a countdown immediately; finished timers stay visible for a minute unless dismissed. Returns the resulting timer list."),
		mcp.WithInputSchema[TimerArgs](),
	), wrapTimer(ctrl, log))

	s.AddTool(mcp.NewTool("switch_units",
		mcp.WithDescription("Switch ingredient display between metric and imperial. Presentation only: stored recipe amounts never change."),
		mcp.WithInputSchema[UnitsArgs](),
	), wrapUnits(ctrl))

	s.AddTool(mcp.NewTool("substitute_ingredient",
		mcp.WithDescription("Replace an ingredient on a step (ran out, allergy, preference). Every place the step text references the ingredient re-renders with the new name."),
		mcp.WithInputSchema[SubstituteArgs](),
	), wrapSubstitute(ctrl))

	s.AddTool(mcp.NewTool("adjust_ingredient_amount",
		mcp.WithDescription("Change how much of an ingredient a step calls for, e.g. after scaling advice or a correction."),
		mcp.WithInputSchema[AdjustArgs](),
	), wrapAdjust(ctrl))

	s.AddTool(mcp.NewTool("insert_recovery_step",
		mcp.WithDescription("Insert a new step right after the current one, for mid-cook fixes ('the sauce split, whisk in cold butter'). The cook's current step does not change."),
		mcp.WithInputSchema[InsertArgs](),
	), wrapInsert(ctrl))
}

// stateJSON renders the session snapshot for tool output.
func stateJSON(ctrl *engine.Controller) (*mcp.CallToolResult, error) {
	snap, err := ctrl.State()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("no active session: %v", err)), nil
	}
	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding state: %v", err)), nil
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func wrapState(ctrl *engine.Controller) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return stateJSON(ctrl)
	}
}

func wrapNavigate(ctrl *engine.Controller) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args NavigateArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("bad arguments: %v", err)), nil
		}

		var err error
		switch args.Direction {
		case "next":
			_, err = ctrl.NextStep()
		case "previous", "prev", "back":
			_, err = ctrl.PreviousStep()
		case "":
			_, err = ctrl.NavigateToStep(args.Step)
		default:
			return mcp.NewToolResultError(fmt.Sprintf("unknown direction %q (use 'next' or 'previous')", args.Direction)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return stateJSON(ctrl)
	}
}

func wrapComplete(ctrl *engine.Controller) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args StepArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("bad arguments: %v", err)), nil
		}
		if err := ctrl.MarkStepComplete(args.Step); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return stateJSON(ctrl)
	}
}

func wrapSkip(ctrl *engine.Controller) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args StepArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("bad arguments: %v", err)), nil
		}
		if err := ctrl.SkipStep(args.Step); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return stateJSON(ctrl)
	}
}

func wrapTimer(ctrl *engine.Controller, log *logger.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args TimerArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("bad arguments: %v", err)), nil
		}

		timers, err := ctrl.ManageTimer(engine.TimerAction{
			Action:          args.Action,
			ID:              args.ID,
			DurationSeconds: args.DurationSeconds,
			Label:           args.Label,
			Emoji:           args.Emoji,
			NotifyAt:        args.NotifyAt,
			AddSeconds:      args.AddSeconds,
			SubtractSeconds: args.SubtractSeconds,
		})
		if err != nil {
			log.Debug("manage_timer %s failed: %v", args.Action, err)
			return mcp.NewToolResultError(err.Error()), nil
		}

		raw, err := json.MarshalIndent(timers, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encoding timers: %v", err)), nil
		}
		return mcp.NewToolResultText(string(raw)), nil
	}
}

func wrapUnits(ctrl *engine.Controller) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args UnitsArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("bad arguments: %v", err)), nil
		}
		if err := ctrl.SwitchUnits(args.Units); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return stateJSON(ctrl)
	}
}

func wrapSubstitute(ctrl *engine.Controller) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args SubstituteArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("bad arguments: %v", err)), nil
		}
		if err := ctrl.SubstituteIngredient(args.Step, args.PlaceholderKey, args.NewName, args.NewAmount, args.Note); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return stateJSON(ctrl)
	}
}

func wrapAdjust(ctrl *engine.Controller) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args AdjustArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("bad arguments: %v", err)), nil
		}
		if err := ctrl.AdjustIngredientAmount(args.Step, args.PlaceholderKey, args.NewAmount); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return stateJSON(ctrl)
	}
}

func wrapInsert(ctrl *engine.Controller) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args InsertArgs
		if err := request.BindArguments(&args); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("bad arguments: %v", err)), nil
		}
		if args.Title == "" || args.Description == "" {
			return mcp.NewToolResultError("title and description are required"), nil
		}
		if _, err := ctrl.InsertRecoveryStep(args.Title, args.Description); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return stateJSON(ctrl)
	}
}
