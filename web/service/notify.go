package service

import (
	"fmt"

	"github.com/xui-tools/xui-bot/monitor"
	"github.com/xui-tools/xui-bot/util/common"
)

// RenderNotification turns a gate decision into the message text the
// subscriber sees.
func RenderNotification(kind monitor.NotificationKind, status monitor.UserStatus) string {
	usage := common.FormatTraffic(status.TotalBytesUsed)
	capText := "♾ Unlimited"
	if status.DataCapBytes > 0 {
		capText = common.FormatTraffic(status.DataCapBytes)
	}

	switch kind {
	case monitor.NotifyExpired:
		return fmt.Sprintf("⌛️ Your subscription <b>%s</b> expired on %s.\r\nRenew it to keep using the service.",
			status.Email, common.FormatExpiry(status.ExpiresAt))
	case monitor.NotifyOverQuota:
		return fmt.Sprintf("📛 Your subscription <b>%s</b> ran out of traffic.\r\n🔄 Used: %s / %s",
			status.Email, usage, capText)
	case monitor.NotifyDisabled:
		return fmt.Sprintf("🚫 Your subscription <b>%s</b> was disabled by the administrator.", status.Email)
	case monitor.NotifyRestored:
		return fmt.Sprintf("✅ Your subscription <b>%s</b> is active again.\r\n🔄 Used: %s / %s\r\n📅 Expires: %s",
			status.Email, usage, capText, common.FormatExpiry(status.ExpiresAt))
	}
	return ""
}
