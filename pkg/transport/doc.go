/*
Package transport builds TLS 1.2/1.3 configuration for the AS2 client and
server, independent of and below the S/MIME signing layer in pkg/security.

# Client

	client := transport.NewHTTPClient(transport.DefaultConfig())
	// pass client as as2transport.DefaultFactory.HTTPClient

# Server, with optional mutual TLS

	tlsCfg := transport.NewServerTLSConfig(&transport.Config{
	    ClientAuth: tls.RequireAndVerifyClientCert,
	    ClientCAs:  partnerCAPool,
	})
	// assign to http.Server.TLSConfig
*/
package transport
