package options

import "elicate/pkg/chattypes"

// LayerOrder is an ordered list of layers consulted top-down during resolution.
type LayerOrder []chattypes.Layer

// Precedence is the resolution order, highest precedence first.
var Precedence = LayerOrder{chattypes.LayerChat, chattypes.LayerUser, chattypes.LayerDefault}

// Applicable returns the layers of o that may be consulted for an option with
// the given scope. The chat layer is skipped when chatID is empty.
func (o LayerOrder) Applicable(scope chattypes.Scope, chatID string) []chattypes.Layer {
	out := make([]chattypes.Layer, 0, len(o))
	for _, l := range o {
		if !scope.Permits(l) {
			continue
		}
		if l == chattypes.LayerChat && chatID == "" {
			continue
		}
		out = append(out, l)
	}
	return out
}

// Narrowest returns the most specific layer a write may target for an option
// with the given scope while chatID is active.
func Narrowest(scope chattypes.Scope, chatID string) chattypes.Layer {
	if chatID != "" && scope.Permits(chattypes.LayerChat) {
		return chattypes.LayerChat
	}
	return chattypes.LayerUser
}

// StorageKey formats the persistence key "{layer}:{groupId}.{optionId}[:{chatId}]".
func StorageKey(layer chattypes.Layer, groupID, optionID, chatID string) string {
	key := layer.String() + ":" + chattypes.OptionKey(groupID, optionID)
	if layer == chattypes.LayerChat && chatID != "" {
		key += ":" + chatID
	}
	return key
}
