package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var ErrInvalidStepConfig = errors.New("invalid step config")

// StepConfig is the decoded, typed configuration of a step. Each step kind
// has exactly one concrete config type.
type StepConfig interface {
	stepConfig()
}

// MessageConfig configures send_message and send_notification steps.
type MessageConfig struct {
	Title   string
	Content string
	Channel string
}

// EmailConfig configures send_email steps. An empty To resolves the
// recipient from the run context.
type EmailConfig struct {
	To      string
	Subject string
	Body    string
}

// AssignConfig configures assign_agent and assign_lead steps.
type AssignConfig struct {
	AssigneeID string
	Entity     string
}

type StatusConfig struct {
	Target string
	Entity string
}

type TagConfig struct {
	Tag    string
	Entity string
}

// MaxWaitMinutes caps a wait step at one year.
const MaxWaitMinutes = 365 * 24 * 60

type WaitConfig struct {
	Minutes int
}

type AIReplyConfig struct {
	Prompt         string
	MaxTokens      int
	Temperature    float64
	Channel        string
	TimeoutSeconds int
}

// ConditionConfig holds either a structured comparison or a freeform
// expression. A non-empty Expression wins over the structured fields.
type ConditionConfig struct {
	Field      string
	Operator   string
	Value      any
	Expression string
}

func (MessageConfig) stepConfig()   {}
func (EmailConfig) stepConfig()     {}
func (AssignConfig) stepConfig()    {}
func (StatusConfig) stepConfig()    {}
func (TagConfig) stepConfig()       {}
func (WaitConfig) stepConfig()      {}
func (AIReplyConfig) stepConfig()   {}
func (ConditionConfig) stepConfig() {}

// DecodeStepConfig converts the raw config map of a step into its typed form.
//
//nolint:ireturn // sum type
func DecodeStepConfig(stepType StepType, config map[string]any) (StepConfig, error) {
	raw := rawConfig(config)

	switch stepType {
	case StepSendMessage, StepSendNotification:
		return MessageConfig{
			Title:   raw.str("title"),
			Content: raw.str("content"),
			Channel: raw.str("channel"),
		}, nil
	case StepSendEmail:
		return EmailConfig{
			To:      raw.str("to"),
			Subject: raw.str("subject"),
			Body:    raw.str("body"),
		}, nil
	case StepAssignAgent, StepAssignLead:
		cfg := AssignConfig{AssigneeID: raw.str("assigneeId"), Entity: raw.str("entity")}
		if cfg.AssigneeID == "" {
			return nil, configError(stepType, "assigneeId is required")
		}

		return cfg, nil
	case StepUpdateStatus:
		cfg := StatusConfig{Target: raw.str("target"), Entity: raw.str("entity")}
		if cfg.Target == "" {
			return nil, configError(stepType, "target is required")
		}

		return cfg, nil
	case StepAddTag:
		cfg := TagConfig{Tag: strings.TrimSpace(raw.str("tag")), Entity: raw.str("entity")}
		if cfg.Tag == "" {
			return nil, configError(stepType, "tag is required")
		}

		return cfg, nil
	case StepWait:
		minutes, err := raw.integer("minutes")
		if err != nil {
			return nil, configError(stepType, err.Error())
		}

		if minutes < 0 {
			return nil, configError(stepType, "minutes must not be negative")
		}

		if minutes > MaxWaitMinutes {
			return nil, configError(stepType, fmt.Sprintf("minutes must not exceed %d", MaxWaitMinutes))
		}

		return WaitConfig{Minutes: minutes}, nil
	case StepAIReply:
		return decodeAIReply(raw)
	case StepCondition:
		return ConditionConfig{
			Field:      raw.str("field"),
			Operator:   raw.str("operator"),
			Value:      config["value"],
			Expression: strings.TrimSpace(raw.str("expression")),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown step type %q", ErrInvalidStepConfig, stepType)
	}
}

func decodeAIReply(raw rawConfig) (StepConfig, error) {
	cfg := AIReplyConfig{
		Prompt:  raw.str("prompt"),
		Channel: raw.str("channel"),
	}

	if cfg.Prompt == "" {
		return nil, configError(StepAIReply, "prompt is required")
	}

	var err error

	if raw.has("maxTokens") {
		cfg.MaxTokens, err = raw.integer("maxTokens")
		if err != nil {
			return nil, configError(StepAIReply, err.Error())
		}
	}

	if raw.has("temperature") {
		cfg.Temperature, err = raw.number("temperature")
		if err != nil {
			return nil, configError(StepAIReply, err.Error())
		}
	}

	if raw.has("timeoutSeconds") {
		cfg.TimeoutSeconds, err = raw.integer("timeoutSeconds")
		if err != nil {
			return nil, configError(StepAIReply, err.Error())
		}
	}

	return cfg, nil
}

func configError(stepType StepType, detail string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidStepConfig, stepType, detail)
}

type rawConfig map[string]any

func (r rawConfig) has(key string) bool {
	v, ok := r[key]

	return ok && v != nil
}

func (r rawConfig) str(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (r rawConfig) number(key string) (float64, error) {
	n, ok := ToFloat(r[key])
	if !ok {
		return 0, fmt.Errorf("%s must be a number", key)
	}

	return n, nil
}

func (r rawConfig) integer(key string) (int, error) {
	n, err := r.number(key)
	if err != nil {
		return 0, err
	}

	if n != math.Trunc(n) {
		return 0, fmt.Errorf("%s must be a whole number", key)
	}

	if math.Abs(n) > math.MaxInt32 {
		return 0, fmt.Errorf("%s is out of range", key)
	}

	return int(n), nil
}

// ToFloat coerces JSON and Go numeric values, and numeric strings, to float64.
func ToFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()

		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)

		return f, err == nil
	default:
		return 0, false
	}
}
