package payment

import "strings"

// Client-side next steps, keyed by raw provider status.
var InstructionMap = map[string][]string{
	RawRequiresPaymentMethod: {
		"Collect card details with the publishable key and the client secret",
		"Confirm the payment of {{amount}} with the selected payment method",
	},
	RawRequiresConfirmation: {
		"Confirm the payment of {{amount}} for intent {{intent_id}}",
	},
	RawRequiresAction: {
		"Complete the authentication requested by the card issuer (3-D Secure)",
		"Query the payment status of {{intent_id}} once the customer returns",
	},
	RawProcessing: {
		"The bank is processing the payment of {{amount}}",
		"Wait for the webhook or query the status of {{intent_id}} later",
	},
}

// GetInstructions returns the next steps for a raw status, or nil when the
// customer has nothing left to do.
func GetInstructions(rawStatus string) []string {
	return InstructionMap[rawStatus]
}

type InstructionVars map[string]string

func InjectVariables(
	steps []string,
	vars InstructionVars,
) []string {
	result := make([]string, 0, len(steps))

	for _, step := range steps {
		updated := step
		for key, value := range vars {
			updated = strings.ReplaceAll(
				updated,
				"{{"+key+"}}",
				value,
			)
		}
		result = append(result, updated)
	}

	return result
}

// nextAction renders the instructions for a result as a single line.
func nextAction(r *PaymentResult) string {
	steps := GetInstructions(r.RawStatus)
	if len(steps) == 0 {
		return ""
	}
	steps = InjectVariables(steps, InstructionVars{
		"amount":    r.Amount.String(),
		"intent_id": r.IntentID,
	})
	return strings.Join(steps, "; ")
}
