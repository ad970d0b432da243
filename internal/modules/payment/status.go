package payment

import "strings"

// NormaliseStatus maps provider-specific status strings to TxStatus.
func NormaliseStatus(provider Provider, providerStatus string) TxStatus {
	s := strings.ToUpper(strings.TrimSpace(providerStatus))
	switch s {
	case string(TxPending), string(TxProcessing), string(TxCompleted), string(TxFailed):
		return TxStatus(s)
	}
	switch provider {
	case ProviderMTNMomo:
		switch s {
		case "SUCCESSFUL":
			return TxCompleted
		case "REJECTED", "TIMEOUT":
			return TxFailed
		default:
			return TxProcessing
		}
	case ProviderAirtel:
		switch s {
		case "TS": // Transaction Successful
			return TxCompleted
		case "TF", "TA": // Transaction Failed / Ambiguous
			return TxFailed
		default:
			return TxProcessing
		}
	default:
		switch s {
		case "SUCCESS", "SUCCESSFUL", "PAID":
			return TxCompleted
		case "DECLINED", "ERROR":
			return TxFailed
		case "":
			return TxPending
		default:
			return TxProcessing
		}
	}
}
