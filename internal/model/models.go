package model

// All returns every model in migration order
func All() []interface{} {
	return []interface{}{
		&User{},
		&OAuthAccount{},
		&Business{},
		&TeamMember{},
		&Subscription{},
		&Offering{},
		&Booking{},
		&Conversation{},
		&KnowledgeBase{},
		&Campaign{},
		&Notification{},
		&Integration{},
		&Deployment{},
	}
}
