package gateway

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ResultSuccess is the gateway result code for a successful payment.
const ResultSuccess = 0

var ErrInvalidExtraData = errors.New("invalid extra data")

// Notification is the signed payload the gateway delivers to the IPN
// endpoint (JSON body) and to the browser redirect (query string).
type Notification struct {
	PartnerCode  string `json:"partnerCode" form:"partnerCode"`
	OrderID      string `json:"orderId" form:"orderId"`
	RequestID    string `json:"requestId" form:"requestId"`
	Amount       int64  `json:"amount" form:"amount"`
	OrderInfo    string `json:"orderInfo" form:"orderInfo"`
	OrderType    string `json:"orderType" form:"orderType"`
	TransID      int64  `json:"transId" form:"transId"`
	ResultCode   int    `json:"resultCode" form:"resultCode"`
	Message      string `json:"message" form:"message"`
	PayType      string `json:"payType" form:"payType"`
	ResponseTime int64  `json:"responseTime" form:"responseTime"`
	ExtraData    string `json:"extraData" form:"extraData"`
	Signature    string `json:"signature" form:"signature"`
}

// Succeeded reports whether the gateway reports the payment as paid.
func (n *Notification) Succeeded() bool {
	return n.ResultCode == ResultSuccess
}

// Info returns the fields kept on the payment record as the gateway payload.
func (n *Notification) Info() map[string]interface{} {
	return map[string]interface{}{
		"partnerCode":  n.PartnerCode,
		"orderId":      n.OrderID,
		"requestId":    n.RequestID,
		"amount":       n.Amount,
		"transId":      n.TransID,
		"resultCode":   n.ResultCode,
		"message":      n.Message,
		"payType":      n.PayType,
		"responseTime": n.ResponseTime,
	}
}

// ExtraData is the opaque blob round-tripped through the gateway.
type ExtraData struct {
	PackageID string `json:"packageId"`
	MemberID  string `json:"memberId"`
}

// EncodeExtraData returns base64(JSON(d)).
func EncodeExtraData(d ExtraData) (string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeExtraData reverses EncodeExtraData and requires both ids.
func DecodeExtraData(s string) (ExtraData, error) {
	var d ExtraData
	if s == "" {
		return d, fmt.Errorf("%w: empty", ErrInvalidExtraData)
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("%w: %v", ErrInvalidExtraData, err)
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, fmt.Errorf("%w: %v", ErrInvalidExtraData, err)
	}
	if d.PackageID == "" || d.MemberID == "" {
		return d, fmt.Errorf("%w: packageId and memberId are required", ErrInvalidExtraData)
	}
	return d, nil
}
