package model

import "time"

type BlogPost struct {
	ID        string    `json:"_id,omitempty"`
	Slug      string    `json:"slug,omitempty"`
	Title     string    `json:"title"`
	Excerpt   string    `json:"excerpt"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Author    string    `json:"author"`
	ReadTime  string    `json:"readTime"`
	Featured  bool      `json:"featured"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// NewBlogPost returns the defaults of a post created from the admin console.
func NewBlogPost() BlogPost {
	return BlogPost{ReadTime: "5 min", Published: true}
}

type FAQ struct {
	ID        string    `json:"_id,omitempty"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Category  string    `json:"category"`
	Order     int       `json:"order"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

func NewFAQ() FAQ {
	return FAQ{Order: 0, Published: true}
}
