package chainerr

import "strings"

// Op はユーザー操作の種類 (メッセージの出し分けに使う)
type Op string

const (
	OpListings          Op = "listings"
	OpBuy               Op = "buy"
	OpSell              Op = "sell"
	OpCreateToken       Op = "create_token"
	OpListAsset         Op = "list_asset"
	OpRemoveListing     Op = "remove_listing"
	OpApprove           Op = "approve"
	OpAddUser           Op = "add_user"
	OpRemoveUser        Op = "remove_user"
	OpToggleMarketplace Op = "toggle_marketplace"
	OpAssignManager     Op = "assign_manager"
	OpSubmitIncome      Op = "submit_income"
)

// revertMessage はrevert文字列の部分一致とユーザー向けメッセージの対応
type revertMessage struct {
	substr string
	msg    string
}

var revertMessages = map[Op][]revertMessage{
	OpSell: {
		{"Insufficient balance", "Insufficient token balance for this transaction"},
		{"Insufficient marketplace funds", "Marketplace has insufficient funds to buy back this asset"},
		{"Must pay platform fee", "Failed to pay platform fee. Please ensure sufficient ETH balance."},
	},
	OpRemoveListing: {
		{"Not the issuer", "You are not authorized to remove this listing"},
		{"Listing not active", "This listing is not active"},
	},
	OpCreateToken: {
		{"Not authorized issuer", "Your wallet is not authorized as an issuer"},
	},
	OpRemoveUser: {
		{"Not an issuer", "This address is not registered as an issuer"},
		{"Not a manager", "This address is not registered as a manager"},
	},
}

var failurePrefix = map[Op]string{
	OpBuy:               "Purchase failed",
	OpSell:              "Transaction failed",
	OpCreateToken:       "Failed to create token",
	OpListAsset:         "Token created but failed to list on marketplace",
	OpRemoveListing:     "Failed to remove listing",
	OpApprove:           "Failed to approve marketplace",
	OpAddUser:           "Failed to create user",
	OpRemoveUser:        "Failed to remove user",
	OpToggleMarketplace: "Failed to toggle marketplace",
	OpAssignManager:     "Failed to assign token",
	OpSubmitIncome:      "Failed to submit rental income",
}

func message(op Op, kind Kind, reason string, err error) string {
	raw := err.Error()
	for _, rm := range revertMessages[op] {
		if strings.Contains(raw, rm.substr) || strings.Contains(reason, rm.substr) {
			return rm.msg
		}
	}

	switch kind {
	case KindUserRejected:
		return "Transaction was cancelled by user"
	case KindInsufficientFunds:
		if op == OpSell {
			return "Insufficient ETH for gas fees and platform fee"
		}
		return "Insufficient funds for transaction"
	case KindGasEstimation:
		if op == OpToggleMarketplace {
			return "Gas estimation failed - check contract state"
		}
	case KindReverted:
		if op == OpListings {
			return "Marketplace contract unavailable. Loading demo data as fallback."
		}
		if reason != "" {
			return "Contract error: " + reason
		}
		switch op {
		case OpRemoveUser:
			return "Transaction reverted. Check if you have admin permissions and the user exists."
		case OpAssignManager:
			return "Transaction reverted. Check if you have admin permissions and the manager exists."
		}
	case KindNetworkSync:
		if op == OpListings {
			return "Network synchronization issue. Loading demo data as fallback."
		}
	case KindNetwork:
		if op == OpListings {
			return "Network connection issue. Loading demo data as fallback."
		}
	}

	if op == OpListings {
		return "Contract data unavailable. Loading demo data as fallback."
	}
	if prefix, ok := failurePrefix[op]; ok {
		return prefix + ": " + raw
	}
	return raw
}
