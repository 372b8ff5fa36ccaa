package crackle

// Version is the release of the library and the crackle command.
const Version = "0.1.0"
