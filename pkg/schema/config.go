package schema

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// StartConfig is the typed view of a start node's config.
type StartConfig struct {
	Trigger     string `json:"trigger" mapstructure:"trigger"`
	TriggerCron string `json:"triggerCron,omitempty" mapstructure:"triggerCron"`
}

// DelayConfig is the typed view of a delay node's config. Wait is in seconds.
type DelayConfig struct {
	Wait int `json:"wait" mapstructure:"wait"`
}

// ApplyConfig is the typed view of a bizApply node's config.
type ApplyConfig struct {
	Domains              string `json:"domains,omitempty" mapstructure:"domains"`
	ContactEmail         string `json:"contactEmail,omitempty" mapstructure:"contactEmail"`
	ChallengeType        string `json:"challengeType" mapstructure:"challengeType"`
	Provider             string `json:"provider,omitempty" mapstructure:"provider"`
	ProviderAccessID     string `json:"providerAccessId,omitempty" mapstructure:"providerAccessId"`
	KeyAlgorithm         string `json:"keyAlgorithm" mapstructure:"keyAlgorithm"`
	SkipBeforeExpiryDays int    `json:"skipBeforeExpiryDays" mapstructure:"skipBeforeExpiryDays"`
}

// UploadConfig is the typed view of a bizUpload node's config.
type UploadConfig struct {
	Source        string `json:"source" mapstructure:"source"`
	CertificateID string `json:"certificateId,omitempty" mapstructure:"certificateId"`
	Certificate   string `json:"certificate,omitempty" mapstructure:"certificate"`
	PrivateKey    string `json:"privateKey,omitempty" mapstructure:"privateKey"`
}

// MonitorConfig is the typed view of a bizMonitor node's config.
type MonitorConfig struct {
	Host        string `json:"host" mapstructure:"host"`
	Port        int    `json:"port" mapstructure:"port"`
	Domain      string `json:"domain,omitempty" mapstructure:"domain"`
	RequestPath string `json:"requestPath" mapstructure:"requestPath"`
}

// DeployConfig is the typed view of a bizDeploy node's config.
type DeployConfig struct {
	Provider                string         `json:"provider,omitempty" mapstructure:"provider"`
	ProviderAccessID        string         `json:"providerAccessId,omitempty" mapstructure:"providerAccessId"`
	ProviderConfig          map[string]any `json:"providerConfig,omitempty" mapstructure:"providerConfig"`
	CertificateOutputNodeID string         `json:"certificateOutputNodeId" mapstructure:"certificateOutputNodeId"`
	SkipOnLastSucceeded     bool           `json:"skipOnLastSucceeded" mapstructure:"skipOnLastSucceeded"`
}

// NotifyConfig is the typed view of a bizNotify node's config.
type NotifyConfig struct {
	Subject              string `json:"subject" mapstructure:"subject"`
	Message              string `json:"message" mapstructure:"message"`
	Provider             string `json:"provider,omitempty" mapstructure:"provider"`
	ProviderAccessID     string `json:"providerAccessId,omitempty" mapstructure:"providerAccessId"`
	SkipOnAllPrevSkipped bool   `json:"skipOnAllPrevSkipped" mapstructure:"skipOnAllPrevSkipped"`
}

// BranchBlockConfig is the typed view of a branchBlock node's config.
type BranchBlockConfig struct {
	Expression Expr `json:"expression,omitempty" mapstructure:"expression"`
}

// DecodeConfig decodes n's config mapping into out, which must be a pointer to
// one of the typed config structs. Absent config leaves out untouched.
func DecodeConfig(n *Node, out any) error {
	if n == nil || n.Data.Config == nil {
		return nil
	}
	cfg, ok := n.Data.Config.(map[string]any)
	if !ok {
		return NewErrorf(ErrCodeInvalidArgument, "config is %T, not a mapping", n.Data.Config).WithNode(n.ID)
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("create config decoder: %w", err)
	}
	if err := dec.Decode(cfg); err != nil {
		return NewErrorf(ErrCodeInvalidArgument, "decode %s config: %s", n.Type, err.Error()).
			WithNode(n.ID).
			WithCause(err)
	}
	return nil
}
