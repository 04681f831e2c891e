package config

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// schema constrains value ranges. Empty Mastodon URL is allowed so that
// read-only commands work without credentials.
const schema = `
#URL: =~"^https?://[^\\s]+$"

#Config: {
	bluesky: {
		service:  #URL
		handle:   string
		password: string
	}
	mastodon: {
		base_url:     "" | #URL
		access_token: string
	}
	sync: {
		start_date:              string
		max_posts:               int & >=1 & <=100
		dry_run:                 bool
		disable_source_platform: bool
		skip_quotes_of_others:   bool
		media_strategy:          "text-placeholder" | "skip-post" | "partial"
		item_delay:              int & >=0
		opt_out_tag:             =~"^#[^\\s#]+$"
	}
	log: {
		level:  "debug" | "info" | "warn" | "error"
		format: "text" | "json"
		file:   string
	}
	state_file:   string & !=""
	journal_file: string
}
`

func validateSchema(c *Config) error {
	ctx := cuecontext.New()
	root := ctx.CompileString(schema, cue.Filename("config.cue"))
	if err := root.Err(); err != nil {
		return fmt.Errorf("compiling config schema: %w", err)
	}
	def := root.LookupPath(cue.ParsePath("#Config"))

	val := ctx.Encode(c)
	if err := val.Err(); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := def.Unify(val).Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Problems: schemaProblems(err)}
	}
	return nil
}

func schemaProblems(err error) []string {
	var problems []string
	for _, e := range cueerrors.Errors(err) {
		problems = append(problems, e.Error())
	}
	if len(problems) == 0 {
		problems = append(problems, err.Error())
	}
	return problems
}
