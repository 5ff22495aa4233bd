package groups

// DefaultGroups returns the starter groups created for an account with none.
func DefaultGroups() []Group {
	return []Group{
		{
			Name:        "Promotions",
			Description: "Deals, offers, and marketing emails",
			Color:       "#f4b400",
			Keywords: []string{
				"sale", "deal", "offer", "discount", "coupon", "promo",
				"limited time", "special offer", "shop now", "buy now",
				"unsubscribe", "newsletter", "promotional", "off your",
				"free shipping", "exclusive", "save", "clearance",
			},
			SortOrder: 1,
		},
		{
			Name:        "Updates",
			Description: "Receipts, confirmations, and account updates",
			Color:       "#ab47bc",
			Keywords: []string{
				"receipt", "confirmation", "order", "shipped", "delivered",
				"tracking", "invoice", "payment", "statement", "your account",
				"security alert", "verify", "password", "signed in",
			},
			SortOrder: 2,
		},
		{
			Name:        "Social",
			Description: "Social media notifications",
			Color:       "#db4437",
			Keywords: []string{
				"facebook", "twitter", "instagram", "linkedin", "reddit",
				"notification", "commented", "liked", "mentioned you",
				"tagged you", "friend request", "new follower",
			},
			Domains:   []string{"facebookmail.com", "linkedin.com", "twitter.com", "reddit.com"},
			SortOrder: 3,
		},
	}
}
