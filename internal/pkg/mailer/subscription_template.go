package mailer

import (
	"fmt"
	"html"
	"time"
)

func subscriptionText(productName, downloadLink, customerName string) string {
	return fmt.Sprintf("Dear %s,\n\nThank you for subscribing to %s!\n\n"+
		"Your subscription has been successfully activated. You can download your product here: %s\n\n"+
		"Thank you for choosing us!", customerName, productName, downloadLink)
}

func subscriptionHTML(productName, downloadLink, customerName string) string {
	return fmt.Sprintf(`
		<div style="font-family: 'Segoe UI', Arial, sans-serif; max-width: 600px; margin: 0 auto; color: #333;">
			<div style="background: #1a1a2e; color: #fff; padding: 32px 20px; text-align: center;">
				<h1 style="margin: 0;">Thank You for Your Subscription!</h1>
			</div>
			<div style="padding: 32px 24px;">
				<p>Dear %s,</p>
				<p>Thank you for subscribing! Your subscription has been successfully activated.</p>
				<div style="border-left: 4px solid #d4af37; background: #f8f9fa; padding: 12px 20px; margin: 20px 0;">
					<h3 style="margin: 0 0 8px 0;">Your Subscription:</h3>
					<p style="margin: 0;"><strong>%s</strong></p>
				</div>
				<p>If you need help getting started, reply to our support team.</p>
			</div>
			<div style="text-align: center; padding: 24px;">
				<a href="%s" style="background-color: #d4af37; color: #1a1a2e; padding: 12px 28px; text-decoration: none; border-radius: 5px; font-weight: bold;">DOWNLOAD NOW</a>
			</div>
			<p style="font-size: 12px; color: #888; text-align: center;">This is an automated email. Please do not reply to this message.<br>&copy; %d All rights reserved.</p>
		</div>
	`,
		html.EscapeString(customerName),
		html.EscapeString(productName),
		html.EscapeString(downloadLink),
		time.Now().Year(),
	)
}
