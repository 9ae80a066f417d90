package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

func hmacHex(msg, secret string) string {
	m := hmac.New(sha256.New, []byte(secret))
	_, _ = m.Write([]byte(msg))
	return hex.EncodeToString(m.Sum(nil))
}

// canonical joins key=value pairs with '&' in the given order.
func canonical(pairs ...string) string {
	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(pairs[i])
		b.WriteByte('=')
		b.WriteString(pairs[i+1])
	}
	return b.String()
}

// createRequestRaw is the signed string for an outbound payment request.
// Field order is fixed by the gateway (alphabetical).
func createRequestRaw(accessKey string, req *createRequest) string {
	return canonical(
		"accessKey", accessKey,
		"amount", strconv.FormatInt(req.Amount, 10),
		"extraData", req.ExtraData,
		"ipnUrl", req.IpnURL,
		"orderId", req.OrderID,
		"orderInfo", req.OrderInfo,
		"partnerCode", req.PartnerCode,
		"redirectUrl", req.RedirectURL,
		"requestId", req.RequestID,
		"requestType", req.RequestType,
	)
}

// notificationRaw is the signed string for an inbound notification.
func notificationRaw(accessKey string, n *Notification) string {
	return canonical(
		"accessKey", accessKey,
		"amount", strconv.FormatInt(n.Amount, 10),
		"extraData", n.ExtraData,
		"message", n.Message,
		"orderId", n.OrderID,
		"orderInfo", n.OrderInfo,
		"orderType", n.OrderType,
		"partnerCode", n.PartnerCode,
		"payType", n.PayType,
		"requestId", n.RequestID,
		"responseTime", strconv.FormatInt(n.ResponseTime, 10),
		"resultCode", strconv.Itoa(n.ResultCode),
		"transId", strconv.FormatInt(n.TransID, 10),
	)
}
