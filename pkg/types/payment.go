package types

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusSuccessful PaymentStatus = "successful"
	PaymentStatusFailed     PaymentStatus = "failed"
)

type PaymentProvider string

const (
	PaymentProviderTelegram PaymentProvider = "telegram"
	PaymentProviderExternal PaymentProvider = "external"
	// PaymentProviderInner marks complimentary grants recorded by an admin; they carry no revenue.
	PaymentProviderInner PaymentProvider = "inner"
)

func (p PaymentProvider) Valid() bool {
	switch p {
	case PaymentProviderTelegram, PaymentProviderExternal, PaymentProviderInner:
		return true
	}
	return false
}
