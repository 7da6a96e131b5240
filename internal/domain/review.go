package domain

import "time"

type Review struct {
	ID                 string    `json:"id"`
	ProductID          string    `json:"productId"`
	UserID             string    `json:"userId"`
	Rating             int       `json:"rating"`
	Title              string    `json:"title,omitempty"`
	Comment            string    `json:"comment,omitempty"`
	IsVerifiedPurchase bool      `json:"isVerifiedPurchase"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type ReviewCreateData struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Title   string `json:"title" validate:"max=120"`
	Comment string `json:"comment" validate:"max=2000"`
}
