package download

// Version of the client. Set during build with "-ldflags".
var Version = "0.0.0"
