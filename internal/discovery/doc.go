// Package discovery locates LightwaveRF hubs on the local network with
// multicast DNS.
//
// Both the LightwaveLink and the Link Plus announce an "_http._tcp" service
// for their local setup page. The scanner keeps the entries whose hostname
// carries a LightwaveRF prefix and reports each as a Hub with its address,
// model and serial (the MAC suffix in the hostname).
//
//	hubs, err := discovery.NewScanner().Scan(ctx)
//	for _, h := range hubs {
//	    fmt.Println(h)
//	}
//
// Discovery needs multicast on the local segment and UDP port 5353 open.
package discovery
