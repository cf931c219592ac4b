package config

// DefaultConfigYAML contains the default configuration YAML content.
// `helix init` writes it to .helix/config.yaml.
const DefaultConfigYAML = `# Helix configuration
#
# Values not specified here use built-in defaults.
# Environment variables override file values: HELIX_LOG_LEVEL=debug,
# HELIX_WORKFLOW_DRY_RUN=true, ...

log:
  # debug | info | warn | error
  level: info
  # auto | text | json | pretty (auto is pretty on a terminal, JSON otherwise)
  format: auto

workflow:
  # Retries allowed across the whole run.
  max_retries: 3
  # Retries of a failed phase before the alternative path is taken.
  phase_retries: 1
  # Wait before retry n is backoff_base * 2^(n-1), capped at backoff_max.
  backoff_base: 1s
  backoff_max: 30s
  # Sessions run at the same time by "helix run --batch".
  max_concurrent: 3
  # Complete every phase without running its command.
  dry_run: false

state:
  # json (one file per session) | sqlite
  backend: json
  path: .helix/checkpoints

# Phase commands receive the phase input as JSON on stdin and print their
# result as a JSON object on stdout. Exit code 77 means permission denied,
# 65 means the input was rejected. The analysis phase uses the built-in
# repository analyzer unless a command is set. Any other phase without a
# command fails with a configuration error unless dry_run is set.
phases:
  planning:
    command: ["sh", "-c", "echo '{\"plan\": \"describe the change\"}'"]
    timeout: 5m
  coding:
    command: ["sh", "-c", "echo '{\"files_changed\": 0}'"]
    timeout: 30m
  testing:
    command: ["sh", "-c", "go test ./... >&2 && echo '{\"passed\": true}'"]
    timeout: 15m
  review:
    command: ["sh", "-c", "echo '{\"approved\": true}'"]
    timeout: 10m
  gitops:
    command: ["sh", "-c", "git status --porcelain >/dev/null && echo '{}'"]
    timeout: 2m
  explanation:
    command: ["sh", "-c", "echo '{\"summary\": \"\"}'"]
    timeout: 5m
  # A phase may also run in a workspace subdirectory and receive extra
  # environment variables. Values are redacted from logs.
  #
  # review:
  #   command: ["./scripts/review.sh"]
  #   workdir: scripts
  #   env:
  #     REVIEW_TOKEN: "..."

server:
  host: 127.0.0.1
  port: 8080
  cors_origins: []
`
