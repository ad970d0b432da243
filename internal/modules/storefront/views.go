package storefront

import (
	"github.com/georgemunganga/printa-storefront/internal/modules/cart"
	"github.com/georgemunganga/printa-storefront/internal/modules/catalog"
	"github.com/georgemunganga/printa-storefront/internal/modules/user"
	"github.com/georgemunganga/printa-storefront/internal/modules/vendor"
)

// VendorCard is a vendor listing joined with its follow card. Followers
// comes from the card.
type VendorCard struct {
	vendor.Vendor
	Following bool `json:"following"`
}

// Overview is returned when a dashboard mounts.
type Overview struct {
	User       *user.User      `json:"user"`
	Cart       cart.View       `json:"cart"`
	Categories []catalog.Group `json:"categories"`
	Vendors    int             `json:"vendors"`
	// Pruned lists cart lines dropped because their product is gone.
	Pruned []string `json:"pruned"`
}

func cards(vendors []vendor.Vendor, b *vendor.Board) []VendorCard {
	out := make([]VendorCard, 0, len(vendors))
	for _, v := range vendors {
		card := b.Card(v.ID)
		v.Followers = card.Followers
		out = append(out, VendorCard{Vendor: v, Following: card.Following})
	}
	return out
}

func followedIDs(b *vendor.Board) []string {
	var ids []string
	for _, c := range b.Cards() {
		if c.Following {
			ids = append(ids, c.VendorID)
		}
	}
	return ids
}

func userPtr(u user.User) *user.User {
	if u.IsZero() {
		return nil
	}
	return &u
}
