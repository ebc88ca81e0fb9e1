// Copyright 2026 Chainguard, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/chainguard-dev/clog"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/octo-sts/provenance/pkg/actions"
	"github.com/octo-sts/provenance/pkg/envconfig"
	"github.com/octo-sts/provenance/pkg/events"
	"github.com/octo-sts/provenance/pkg/ghoidc"
	"github.com/octo-sts/provenance/pkg/predicate"
	"github.com/octo-sts/provenance/pkg/workflowref"
)

const (
	formatActions = "actions"
	formatJSON    = "json"
	formatYAML    = "yaml"
)

type options struct {
	issuer string
	strict bool
	format string
}

func newRootCmd() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:           "predicate",
		Short:         "Generate SLSA v1 build provenance for the running GitHub Actions workflow",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringVar(&opts.issuer, "issuer", predicate.DefaultIssuer, "OIDC issuer of the workflow identity token")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail on missing claims or a workflow_ref outside the repository")
	cmd.Flags().StringVar(&opts.format, "format", formatActions, "output format: actions, json or yaml")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out := actions.New(os.Getenv("GITHUB_OUTPUT"), cmd.OutOrStdout())

		err := func() error {
			cfg, err := envconfig.Process()
			if err != nil {
				return fmt.Errorf("failed to process env var: %w", err)
			}
			out = actions.New(cfg.Output, cmd.OutOrStdout())

			ceclient, err := events.NewClient(cfg.EventingIngress)
			if err != nil {
				return fmt.Errorf("failed to create cloudevents client: %w", err)
			}

			var sopts []ghoidc.Option
			if cfg.Audience != "" {
				sopts = append(sopts, ghoidc.WithAudience(cfg.Audience))
			}
			if cfg.JWKS != "" {
				sopts = append(sopts, ghoidc.WithJWKS(cfg.JWKS))
			}
			src := ghoidc.New(cfg.IDTokenRequestURL, cfg.IDTokenRequestToken, sopts...)

			return run(ctx, cfg, src, ceclient, opts, out, cmd.OutOrStdout())
		}()
		if err != nil {
			clog.ErrorContextf(ctx, "generating provenance: %v", err)
			out.SetFailed(err.Error())
		}
		return err
	}

	return cmd
}

// run generates the predicate and writes it out in the requested format.
func run(ctx context.Context, cfg *envconfig.EnvConfig, src predicate.ClaimsSource, ceclient cloudevents.Client, opts options, out *actions.Writer, stdout io.Writer) (err error) {
	switch opts.format {
	case formatActions, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown format %q", opts.format)
	}

	var aopts []predicate.Option
	if opts.strict {
		aopts = append(aopts, predicate.WithStrict())
	}
	assembler := predicate.New(cfg.ServerURL, aopts...)

	// Remember the claims so the event can describe the run.
	var claims *predicate.Claims
	recording := predicate.ClaimsSourceFunc(func(ctx context.Context, issuer string) (*predicate.Claims, error) {
		c, err := src.Claims(ctx, issuer)
		claims = c
		return c, err
	})

	e := events.Event{
		Actor: events.Actor{
			Issuer: opts.issuer,
		},
	}
	defer func() {
		if claims != nil {
			e.Actor.Issuer = claims.Issuer
			e.Actor.Subject = claims.Subject
			e.Actor.Login = claims.Actor
			e.Repository = claims.Repository
			e.Workflow.Sha = claims.WorkflowSha
			if ref, rerr := workflowref.Resolve(claims.WorkflowRef, claims.Repository); rerr == nil {
				e.Workflow.Path, e.Workflow.Ref = ref.Path, ref.Ref
			}
		}
		if err != nil {
			e.Error = err.Error()
		}
		events.Emit(ctx, ceclient, e)
	}()

	p, err := assembler.Generate(ctx, recording, opts.issuer)
	if err != nil {
		return err
	}
	e.PredicateType = p.Type
	e.InvocationID = p.Params.RunDetails.Metadata.InvocationID

	if !workflowref.MatchesRepository(claims.WorkflowRef, claims.Repository) {
		out.Warning(fmt.Sprintf("workflow_ref %q is not prefixed by repository %q", claims.WorkflowRef, claims.Repository))
	}

	switch opts.format {
	case formatJSON:
		b, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, string(b))
		return err

	case formatYAML:
		b, err := yaml.Marshal(p)
		if err != nil {
			return err
		}
		_, err = stdout.Write(b)
		return err

	default:
		params, err := json.Marshal(p.Params)
		if err != nil {
			return err
		}
		if err := out.SetOutput("predicate", string(params)); err != nil {
			return err
		}
		return out.SetOutput("predicate-type", p.Type)
	}
}
