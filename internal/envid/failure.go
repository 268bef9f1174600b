package envid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Reason classifies why no environment id could be produced.
type Reason string

const (
	ReasonTimeout           Reason = "timeout"
	ReasonCancelled         Reason = "cancelled"
	ReasonNoEnvironments    Reason = "no_environments"
	ReasonLoginFailed       Reason = "login_failed"
	ReasonTCBInitFailed     Reason = "tcb_init_failed"
	ReasonEnvQueryFailed    Reason = "env_query_failed"
	ReasonEnvCreationFailed Reason = "env_creation_failed"
	ReasonUnknown           Reason = "unknown_error"
)

// Error codes attached by the resolver itself. Setup collaborators may use
// their own codes.
const (
	CodeTimeout        = "ENV_ID_TIMEOUT"
	CodeSetupException = "SETUP_EXCEPTION"
)

// DefaultHelpURL is shown when a failure carries no help link.
const DefaultHelpURL = "https://docs.cloudbase.net/cli-v1/env"

// ErrTimeout is the cause of a resolution that exceeded the resolver timeout.
var ErrTimeout = errors.New("environment id resolution timed out")

// FailureInfo is the structured explanation of a failed resolution.
type FailureInfo struct {
	Reason    Reason
	Error     string
	ErrorCode string
	HelpURL   string
	Details   Details
}

// Details carries reason-specific data.
type Details struct {
	InitTCB         *InitTCBError
	CreateEnv       *CreateEnvError
	QueryEnvError   string
	TimeoutDuration time.Duration
}

// InitTCBError describes a failed CloudBase service initialization.
type InitTCBError struct {
	Code             string
	Message          string
	NeedRealNameAuth bool
	NeedCamAuth      bool
}

// CreateEnvError describes a failed environment creation.
type CreateEnvError struct {
	Code    string
	Message string
}

// ResolutionError is returned by Resolver.Resolve. Error() is the full
// remediation text.
type ResolutionError struct {
	Info    *FailureInfo
	Err     error
	message string
}

func (e *ResolutionError) Error() string {
	if e.message != "" {
		return e.message
	}
	return RenderMessage(e.Info, LocaleEN)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Reason returns the failure reason, or ReasonUnknown when none was given.
func (e *ResolutionError) Reason() Reason {
	if e.Info == nil || e.Info.Reason == "" {
		return ReasonUnknown
	}
	return e.Info.Reason
}

func newResolutionError(info *FailureInfo, cause error, locale string) *ResolutionError {
	return &ResolutionError{Info: info, Err: cause, message: RenderMessage(info, locale)}
}

// Supported message locales.
const (
	LocaleEN = "en"
	LocaleZH = "zh"
)

type catalog struct {
	header       string
	noInfo       string
	reason       string
	errorLabel   string
	codeLabel    string
	realName     string
	camAuth      string
	createFailed string
	queryFailed  string
	timeoutLabel string
	timeoutHint  string
	remedies     string
	remedyEnv    string
	remedyTool   string
	remedyDocs   string
	unknown      string
	reasons      map[Reason]string
}

var catalogs = map[string]catalog{
	LocaleEN: {
		header:       "CloudBase environment id not found after auto setup.",
		noInfo:       "CloudBase environment id not found after auto setup. Set CLOUDBASE_ENV_ID or run the login tool.",
		reason:       "Reason",
		errorLabel:   "Error",
		codeLabel:    "Error code",
		realName:     "Real-name verification must be completed before CloudBase can be used.",
		camAuth:      "CAM authorization is required before CloudBase can be used.",
		createFailed: "Environment creation failed",
		queryFailed:  "Environment query failed",
		timeoutLabel: "Timeout",
		timeoutHint:  "Hint: make sure the browser window opened and finish the environment selection in time.",
		remedies:     "How to fix:",
		remedyEnv:    "1. Set the environment id manually: export CLOUDBASE_ENV_ID",
		remedyTool:   "2. Run the login tool to pick an environment",
		remedyDocs:   "3. Read the documentation",
		unknown:      "unknown error",
		reasons: map[Reason]string{
			ReasonTimeout:           "environment selection timed out",
			ReasonCancelled:         "environment selection was cancelled",
			ReasonNoEnvironments:    "no environment available",
			ReasonLoginFailed:       "login failed",
			ReasonTCBInitFailed:     "CloudBase service initialization failed",
			ReasonEnvQueryFailed:    "environment list query failed",
			ReasonEnvCreationFailed: "environment creation failed",
			ReasonUnknown:           "unknown error",
		},
	},
	LocaleZH: {
		header:       "CloudBase Environment ID not found after auto setup.",
		noInfo:       "CloudBase Environment ID not found after auto setup. 请设置 CLOUDBASE_ENV_ID 或运行 login 工具。",
		reason:       "原因",
		errorLabel:   "错误",
		codeLabel:    "错误代码",
		realName:     "需要完成实名认证才能使用 CloudBase 服务。",
		camAuth:      "需要 CAM 权限才能使用 CloudBase 服务。",
		createFailed: "环境创建失败",
		queryFailed:  "环境查询失败",
		timeoutLabel: "超时时间",
		timeoutHint:  "提示: 请确保浏览器窗口已打开，并在规定时间内完成环境选择。",
		remedies:     "解决方案:",
		remedyEnv:    "1. 手动设置环境ID: 设置环境变量 CLOUDBASE_ENV_ID",
		remedyTool:   "2. 使用工具设置: 运行 login 工具",
		remedyDocs:   "3. 查看帮助文档",
		unknown:      "未知错误",
		reasons: map[Reason]string{
			ReasonTimeout:           "环境选择超时",
			ReasonCancelled:         "用户取消了环境选择",
			ReasonNoEnvironments:    "没有可用环境",
			ReasonLoginFailed:       "登录失败",
			ReasonTCBInitFailed:     "CloudBase 服务初始化失败",
			ReasonEnvQueryFailed:    "环境列表查询失败",
			ReasonEnvCreationFailed: "环境创建失败",
			ReasonUnknown:           "未知错误",
		},
	},
}

// RenderMessage builds the human-readable remediation text for info.
// Unknown locales fall back to English.
func RenderMessage(info *FailureInfo, locale string) string {
	c, ok := catalogs[locale]
	if !ok {
		c = catalogs[LocaleEN]
	}
	if info == nil {
		return c.noInfo
	}

	var b strings.Builder
	b.WriteString(c.header)
	b.WriteString("\n\n")

	desc, ok := c.reasons[info.Reason]
	if !ok {
		desc = c.unknown
	}
	fmt.Fprintf(&b, "%s: %s\n", c.reason, desc)
	if info.Error != "" {
		fmt.Fprintf(&b, "%s: %s\n", c.errorLabel, info.Error)
	}
	if info.ErrorCode != "" {
		fmt.Fprintf(&b, "%s: %s\n", c.codeLabel, info.ErrorCode)
	}

	d := info.Details
	switch info.Reason {
	case ReasonTCBInitFailed:
		if d.InitTCB != nil && d.InitTCB.NeedRealNameAuth {
			fmt.Fprintf(&b, "\n%s\n", c.realName)
		}
		if d.InitTCB != nil && d.InitTCB.NeedCamAuth {
			fmt.Fprintf(&b, "\n%s\n", c.camAuth)
		}
	case ReasonEnvCreationFailed:
		if d.CreateEnv != nil {
			msg := d.CreateEnv.Message
			if msg == "" {
				msg = c.unknown
			}
			fmt.Fprintf(&b, "\n%s: %s\n", c.createFailed, msg)
		}
	case ReasonEnvQueryFailed:
		if d.QueryEnvError != "" {
			fmt.Fprintf(&b, "\n%s: %s\n", c.queryFailed, d.QueryEnvError)
		}
	case ReasonTimeout:
		if d.TimeoutDuration > 0 {
			secs := strconv.FormatFloat(d.TimeoutDuration.Seconds(), 'f', -1, 64)
			fmt.Fprintf(&b, "\n%s: %s s\n%s\n", c.timeoutLabel, secs, c.timeoutHint)
		}
	}

	helpURL := info.HelpURL
	if helpURL == "" {
		helpURL = DefaultHelpURL
	}
	fmt.Fprintf(&b, "\n%s\n%s\n%s\n%s: %s\n", c.remedies, c.remedyEnv, c.remedyTool, c.remedyDocs, helpURL)
	return b.String()
}
