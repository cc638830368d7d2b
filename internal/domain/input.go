// Package domain defines the core entities of the verifier:
// validated inputs, proof requests, stage outcomes and proof results.
package domain

import "fmt"

// Public range constraints of the eligibility circuit.
// BMI values are scaled by 10 to avoid decimals (18.5 => 185).
const (
	MinAge = 10
	MaxAge = 25
	MinBMI = 185
	MaxBMI = 249
)

// VerificationInput holds the two private inputs of the eligibility circuit.
// Instances exist only after validation; use NewVerificationInput.
type VerificationInput struct {
	Age         int
	BMITimesTen int
}

// NewVerificationInput constructs a VerificationInput, enforcing the public
// range constraints so that no partially-valid instance can exist.
func NewVerificationInput(age, bmiTimesTen int) (VerificationInput, error) {
	if age < MinAge || age > MaxAge {
		return VerificationInput{}, fmt.Errorf("age %d outside [%d,%d]", age, MinAge, MaxAge)
	}
	if bmiTimesTen < MinBMI || bmiTimesTen > MaxBMI {
		return VerificationInput{}, fmt.Errorf("bmi %d outside [%d,%d]", bmiTimesTen, MinBMI, MaxBMI)
	}
	return VerificationInput{Age: age, BMITimesTen: bmiTimesTen}, nil
}

// ProofRequest is a VerificationInput bound to the session that submitted it.
// The session ID namespaces all temporary artifacts of the proving pipeline so
// concurrent sessions cannot clobber each other's files.
type ProofRequest struct {
	SessionID string
	Input     VerificationInput
}
