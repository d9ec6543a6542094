package main

// uploadForm is served on GET / and posts back to itself
const uploadForm = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Drop</title>
    <style>
        body {
            max-width: 600px;
            margin: 0 auto;
            padding: 20px 15px;
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Arial, sans-serif;
        }

        textarea, input[type=file] {
            width: 100%;
            margin: 10px 0;
            font-size: 1rem;
        }

        #submit {
            padding: 12px 30px;
            background-color: #4285f4;
            color: white;
            border: none;
            border-radius: 4px;
            font-size: 1rem;
            width: 100%;
        }
    </style>
</head>
<body>
    <form id="uploadbanner" enctype="multipart/form-data" method="post" action="/">
        <textarea rows="8" name="message" id="message"></textarea>
        <input name="file" type="file" />
        <input type="submit" value="Send" id="submit" />
    </form>
</body>
</html>
`

// thankYou is the acknowledgment returned for every accepted submission
const thankYou = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Drop</title>
</head>
<body>
    Thank you!
    <a href="/">Send more</a>
</body>
</html>
`
