package mailer

import "fmt"

// PasswordReset is sent by the forgot-password flow
func PasswordReset(to, link string) Message {
	return Message{
		To:      to,
		Subject: "Reset your TourismOS password",
		Body: fmt.Sprintf("We received a request to reset your password.\n\n"+
			"Open this link within one hour to choose a new one:\n%s\n\n"+
			"If you did not ask for this, you can ignore this email.\n", link),
	}
}

// TeamInvite is sent when a member is invited to a business
func TeamInvite(to, businessName, role, link string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("You're invited to join %s on TourismOS", businessName),
		Body: fmt.Sprintf("You have been invited to join %s as %s.\n\n"+
			"Accept the invitation here:\n%s\n", businessName, role, link),
	}
}

// BookingConfirmation is sent to the customer after a booking request
func BookingConfirmation(to, customerName, businessName, offeringName, date, code string) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("Your booking with %s (%s)", businessName, code),
		Body: fmt.Sprintf("Hi %s,\n\nThanks for booking %s with %s on %s.\n"+
			"Your confirmation code is %s.\n\n"+
			"The business will confirm your booking shortly.\n", customerName, offeringName, businessName, date, code),
	}
}
