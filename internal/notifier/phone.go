package notifier

import (
	"context"
	"strings"

	"qd-market-sentry/pkg/types"
)

// notifyPhone 通过Twilio REST接口发送短信
// 凭证未配置时明确失败，而非静默跳过
func (d *Dispatcher) notifyPhone(ctx context.Context, targets *types.ChannelTargets, rendered *types.RenderedMessage) (bool, string) {
	to := strings.TrimSpace(targets.Phone)
	if to == "" {
		return false, "missing_phone_target"
	}
	twilio := d.cfg.Twilio
	if twilio.AccountSID == "" || twilio.AuthToken == "" || twilio.FromNumber == "" {
		return false, "missing_twilio_credentials (请配置 TWILIO_ACCOUNT_SID / TWILIO_AUTH_TOKEN / TWILIO_FROM_NUMBER)"
	}

	body := Truncate(rendered.Plain, 1500)

	url := "https://api.twilio.com/2010-04-01/Accounts/" + twilio.AccountSID + "/Messages.json"
	resp, err := d.client.R().
		SetContext(ctx).
		SetBasicAuth(twilio.AccountSID, twilio.AuthToken).
		SetFormData(map[string]string{
			"To":   to,
			"From": twilio.FromNumber,
			"Body": body,
		}).
		Post(url)
	if err != nil {
		return false, err.Error()
	}
	if resp.StatusCode() >= 200 && resp.StatusCode() < 300 {
		return true, ""
	}
	return false, httpError(resp.StatusCode(), resp.Body())
}
