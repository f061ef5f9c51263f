package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/chazu/amgen/pkg/engine"
	"github.com/chazu/amgen/pkg/kernel"
	"github.com/chazu/amgen/pkg/logging"
	"github.com/chazu/amgen/pkg/tessellate"
	"github.com/spf13/cobra"
)

var errTemplate = errors.New("template has errors")

// App evaluates a template once and reports its parts, for checking a
// template before sweeping it.
type App struct {
	engine *engine.Engine
	kernel kernel.Kernel
}

// PartData is the JSON form of one tessellated part.
type PartData struct {
	Name      string     `json:"name"`
	Triangles int        `json:"triangles"`
	Min       [3]float64 `json:"min"`
	Max       [3]float64 `json:"max"`
}

// EvalErrorData is the JSON form of an evaluation error.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// EvalResult is the full result of one evaluation.
type EvalResult struct {
	Parts  []PartData      `json:"parts"`
	Errors []EvalErrorData `json:"errors"`
}

// NewApp creates an App building solids with k.
func NewApp(k kernel.Kernel) *App {
	return &App{
		engine: engine.NewEngine(k),
		kernel: k,
	}
}

// Evaluate runs source with params bound and tessellates every part.
func (a *App) Evaluate(source string, params map[string]float64) EvalResult {
	result := EvalResult{
		Parts:  []PartData{},
		Errors: []EvalErrorData{},
	}

	// Step 1: Evaluate the template into a part model.
	m, evalErrs, err := a.engine.Evaluate(source, params)
	if err != nil {
		// Fatal error (panic, timeout, etc.)
		logging.Logger().Error("evaluate failed", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}

	// Step 2: Convert eval errors to the output format.
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{
				Line:    e.Line,
				Col:     e.Col,
				Message: e.Message,
			})
		}
		return result
	}

	// Step 3: Tessellate each part.
	meshes, err := tessellate.Tessellate(m, a.kernel)
	if err != nil {
		logging.Logger().Error("tessellate failed", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{
			Message: "tessellation failed: " + err.Error(),
		})
		return result
	}

	// Step 4: Summarize the meshes.
	for _, mesh := range meshes {
		bb := mesh.BoundingBox()
		result.Parts = append(result.Parts, PartData{
			Name:      mesh.Name,
			Triangles: mesh.TriangleCount(),
			Min:       [3]float64{bb.Min.X, bb.Min.Y, bb.Min.Z},
			Max:       [3]float64{bb.Max.X, bb.Max.Y, bb.Max.Z},
		})
	}
	return result
}

func (c *cli) evalCmd() *cobra.Command {
	var (
		kernelName string
		raw        map[string]string
	)
	cmd := &cobra.Command{
		Use:   "eval <template>",
		Short: "evaluate a template once and print its parts as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(c.path(args[0]))
			if err != nil {
				return err
			}
			params, err := parseParams(raw)
			if err != nil {
				return err
			}
			k, err := c.newKernel(kernelName)
			if err != nil {
				return err
			}
			result := NewApp(k).Evaluate(string(source), params)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if len(result.Errors) > 0 {
				return errTemplate
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kernelName, "kernel", "sdfx", "geometry kernel: sdfx or manifold")
	cmd.Flags().StringToStringVarP(&raw, "param", "p", nil, "template parameter, name=value (repeatable)")
	return cmd
}

func parseParams(raw map[string]string) (map[string]float64, error) {
	params := make(map[string]float64, len(raw))
	for name, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("--param %s: %q is not a number", name, s)
		}
		params[name] = v
	}
	return params, nil
}
