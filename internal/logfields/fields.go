/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logfields

import (
	"go.uber.org/zap"
)

// Log Fields.
const (
	FieldClientID        = "clientID"
	FieldConfigurationID = "credentialConfigurationID"
	FieldGrantType       = "grantType"
	FieldHolderDID       = "holderDID"
	FieldIssuerID        = "issuerID"
	FieldStateKey        = "stateKey"
	FieldStage           = "stage"
	FieldSubjectID       = "subjectID"
	FieldTransactionID   = "transactionID"
	FieldCallbackID      = "callbackID"
)

// WithClientID sets the ClientID field.
func WithClientID(clientID string) zap.Field {
	return zap.String(FieldClientID, clientID)
}

// WithConfigurationID sets the ConfigurationID field.
func WithConfigurationID(configurationID string) zap.Field {
	return zap.String(FieldConfigurationID, configurationID)
}

// WithGrantType sets the GrantType field.
func WithGrantType(grantType string) zap.Field {
	return zap.String(FieldGrantType, grantType)
}

// WithHolderDID sets the HolderDID field.
func WithHolderDID(holderDID string) zap.Field {
	return zap.String(FieldHolderDID, holderDID)
}

// WithIssuerID sets the IssuerID field.
func WithIssuerID(issuerID string) zap.Field {
	return zap.String(FieldIssuerID, issuerID)
}

// WithStateKey sets the StateKey field.
func WithStateKey(stateKey string) zap.Field {
	return zap.String(FieldStateKey, stateKey)
}

// WithStage sets the Stage field.
func WithStage(stage string) zap.Field {
	return zap.String(FieldStage, stage)
}

// WithSubjectID sets the SubjectID field.
func WithSubjectID(subjectID string) zap.Field {
	return zap.String(FieldSubjectID, subjectID)
}

// WithTransactionID sets the TransactionID field.
func WithTransactionID(transactionID string) zap.Field {
	return zap.String(FieldTransactionID, transactionID)
}

// WithCallbackID sets the CallbackID field.
func WithCallbackID(callbackID string) zap.Field {
	return zap.String(FieldCallbackID, callbackID)
}
