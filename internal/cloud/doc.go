// Package cloud is a small client for the LightwaveRF cloud API.
//
// A Link Plus hub is only reachable through the cloud: the account login
// issues a bearer token, the token opens the WebSocket session, and the
// REST API lists the structures, devices and features on the account and
// reads feature values in bulk.
//
//	client := cloud.NewClient()
//	if _, err := client.Login(ctx, email, password); err != nil {
//	    fmt.Println(cloud.GetTroubleshootingHint(err))
//	    return err
//	}
//	features, err := client.Features(ctx)
//
// Requests that fail with a retryable APIError (network trouble, 5xx,
// 429) are retried with exponential backoff.
package cloud
